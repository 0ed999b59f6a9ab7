// Package payments adalah port ke payment provider (API gaya Stripe):
// create/retrieve payment intent + verifikasi signed webhook.
package payments

import "context"

// Status intent yang kita pedulikan. "succeeded" dan "canceled" sudah
// settled; sisanya masih bisa berubah.
const (
	IntentSucceeded       = "succeeded"
	IntentProcessing      = "processing"
	IntentRequiresPayment = "requires_payment_method"
	IntentCanceled        = "canceled"
)

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
}

// Tipe event webhook yang di-handle; sisanya diabaikan.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

type Event struct {
	ID       string
	Type     string
	IntentID string
}

type Provider interface {
	// CreateIntent: amount dalam minor units (cents).
	CreateIntent(ctx context.Context, amountCents int, currency string, metadata map[string]string) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
	// VerifyWebhook memvalidasi signature sebelum payload dipercaya.
	VerifyWebhook(raw []byte, sigHeader string) (Event, error)
}
