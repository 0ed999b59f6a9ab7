package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OrderStatus adalah bentuk yang dikembalikan ke client polling.
type OrderStatus struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// Yang disimpan di redis: status + pemiliknya. UserID ikut di-cache supaya
// scoping bisa dicek tanpa ke DB; tanpa ini cache hit melewati authz.
type cachedStatus struct {
	UserID string `json:"user_id"`
	OrderStatus
}

// StatusCache: cache best-effort untuk polling GET status. Error redis
// diabaikan; DB tetap sumber kebenaran.
type StatusCache struct{ R *redis.Client }

func (c *StatusCache) Set(ctx context.Context, orderID, userID, status, paymentStatus string) {
	b, _ := json.Marshal(cachedStatus{
		UserID:      userID,
		OrderStatus: OrderStatus{Status: status, PaymentStatus: paymentStatus},
	})
	_ = c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// Get mengembalikan juga user id pemilik order; caller yang memutuskan
// requester boleh lihat atau tidak.
func (c *StatusCache) Get(ctx context.Context, orderID string) (string, OrderStatus, bool) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", OrderStatus{}, false
	}
	var out cachedStatus
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return "", OrderStatus{}, false
	}
	return out.UserID, out.OrderStatus, true
}

// WebhookDeduper memotong event provider yang dikirim dobel. Kalau redis
// lagi down kita lolosin saja: gate "already paid" di store yang jaga
// correctness, dedup cuma ngurangin noise.
type WebhookDeduper struct{ R *redis.Client }

func (d *WebhookDeduper) Claim(ctx context.Context, eventID string) bool {
	ok, err := Claim(ctx, d.R, fmt.Sprintf(KeyWebhookDedup, eventID), TTLWebhookDedup)
	if err != nil {
		return true
	}
	return ok
}
