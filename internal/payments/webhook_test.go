package payments

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

var testPayload = []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

func testClient() *Client {
	return NewClient("https://pay.example.test", "sk_test", testSecret)
}

func TestVerifyWebhookRoundtrip(t *testing.T) {
	c := testClient()
	sig := SignPayload(testPayload, testSecret, time.Now())

	ev, err := c.VerifyWebhook(testPayload, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventIntentSucceeded, ev.Type)
	assert.Equal(t, "pi_1", ev.IntentID)
}

func TestVerifyWebhookTamperedBody(t *testing.T) {
	c := testClient()
	sig := SignPayload(testPayload, testSecret, time.Now())

	tampered := []byte(strings.Replace(string(testPayload), "pi_1", "pi_2", 1))
	_, err := c.VerifyWebhook(tampered, sig)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestVerifyWebhookWrongSecret(t *testing.T) {
	c := testClient()
	sig := SignPayload(testPayload, "whsec_other", time.Now())

	_, err := c.VerifyWebhook(testPayload, sig)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestVerifyWebhookStaleTimestamp(t *testing.T) {
	c := testClient()

	// lebih tua dari toleransi: replay
	sig := SignPayload(testPayload, testSecret, time.Now().Add(-6*time.Minute))
	_, err := c.VerifyWebhook(testPayload, sig)
	assert.ErrorIs(t, err, ErrVerification)

	// jauh di masa depan juga ditolak
	sig = SignPayload(testPayload, testSecret, time.Now().Add(6*time.Minute))
	_, err = c.VerifyWebhook(testPayload, sig)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestVerifyWebhookMalformedHeader(t *testing.T) {
	c := testClient()
	for _, h := range []string{
		"",
		"garbage",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=1700000000",
	} {
		_, err := c.VerifyWebhook(testPayload, h)
		assert.ErrorIs(t, err, ErrVerification, "header %q", h)
	}
}

func TestVerifyWebhookNonHexSignature(t *testing.T) {
	c := testClient()
	sig := SignPayload(testPayload, testSecret, time.Now())
	broken := strings.SplitN(sig, ",", 2)[0] + ",v1=not-hex"

	_, err := c.VerifyWebhook(testPayload, broken)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestVerifyWebhookRejectsIncompleteEvent(t *testing.T) {
	c := testClient()
	for _, raw := range []string{
		`not json`,
		`{"type":"payment_intent.succeeded"}`,
		`{"id":"evt_1"}`,
	} {
		body := []byte(raw)
		sig := SignPayload(body, testSecret, time.Now())
		_, err := c.VerifyWebhook(body, sig)
		assert.Error(t, err, "body %q", raw)
		assert.NotErrorIs(t, err, ErrVerification, "signature itself is fine for %q", raw)
	}
}
