package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup webhook events dari payment provider: dedup:payments:{event_id}
	KeyWebhookDedup = "dedup:payments:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLWebhookDedup = 48 * time.Hour
)
