package orders

import (
	"encoding/json"
	"time"
)

// Nama event notifikasi (nama yang sama dipakai client realtime).
const (
	EventOrderPlaced      = "orderPlaced"
	EventNewOrder         = "newOrder"
	EventStatusUpdate     = "orderStatusUpdate"
	EventStatusChanged    = "orderStatusChanged"
	EventPaymentConfirmed = "paymentConfirmed"
)

const ChannelStaff = "staff"

// UserChannel: channel notifikasi personal per user.
func UserChannel(userID string) string { return "user-" + userID }

// Envelope membungkus semua event notifikasi di bus.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Event      string          `json:"event"`
	Channel    string          `json:"channel"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type OrderPlacedPayload struct {
	OrderID              string `json:"order_id"`
	OrderNumber          string `json:"order_number"`
	Status               Status `json:"status"`
	EstimatedPrepMinutes int    `json:"estimated_prep_minutes"`
}

type NewOrderPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	TotalCents  int    `json:"total_cents"`
	ItemCount   int    `json:"item_count"`
}

type StatusUpdatePayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      Status `json:"status"`
	Message     string `json:"message,omitempty"`
	UpdatedBy   string `json:"updated_by,omitempty"`
}

type PaymentConfirmedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      Status `json:"status"`
}

// StatusMessage: teks ramah-user yang ikut di push notification.
func StatusMessage(s Status) string {
	switch s {
	case StatusPlaced:
		return "Your order has been placed successfully!"
	case StatusConfirmed:
		return "Your order has been confirmed and will be prepared soon."
	case StatusPreparing:
		return "Your order is being prepared."
	case StatusReady:
		return "Your order is ready for pickup!"
	case StatusCompleted:
		return "Your order has been completed. Thank you!"
	case StatusCancelled:
		return "Your order has been cancelled."
	}
	return "Order status updated."
}
