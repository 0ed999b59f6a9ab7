package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrVerification: signature tidak valid / basi. Payload-nya tidak boleh
// dipercaya dan tidak ada state yang berubah.
var ErrVerification = errors.New("webhook signature verification failed")

// Toleransi timestamp signature; lebih tua dari ini dianggap replay.
const signatureTolerance = 5 * time.Minute

type webhookBody struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook memeriksa header "t=<unix>,v1=<hex>": HMAC-SHA256 atas
// "<t>.<body>" dengan webhook secret, lalu decode event-nya.
func (c *Client) VerifyWebhook(raw []byte, sigHeader string) (Event, error) {
	ts, sig, err := parseSigHeader(sigHeader)
	if err != nil {
		return Event{}, err
	}
	if d := time.Since(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", ErrVerification)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(raw)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(expected, got) {
		return Event{}, ErrVerification
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if body.ID == "" || body.Type == "" {
		return Event{}, fmt.Errorf("webhook event missing id or type")
	}
	return Event{ID: body.ID, Type: body.Type, IntentID: body.Data.Object.ID}, nil
}

func parseSigHeader(h string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrVerification)
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("%w: malformed signature header", ErrVerification)
	}
	return ts, sig, nil
}

// SignPayload menghasilkan header signature yang valid untuk body & waktu
// tertentu. Dipakai di test dan tooling simulasi webhook.
func SignPayload(raw []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(raw)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
