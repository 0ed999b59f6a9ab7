package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/campus-eats/internal/orders"
)

type PaymentsHandler struct {
	Svc *orders.Service
}

type createIntentReq struct {
	OrderID string `json:"order_id"`
}

type confirmPaymentReq struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments/intent", h.createIntent)
	r.Post("/payments/confirm", h.confirmPayment)
	r.Post("/payments/webhook", h.webhook)
}

func (h *PaymentsHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req createIntentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order_id"})
		return
	}

	// provider call di dalam, kasih napas lebih dari endpoint lokal
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	in, err := h.Svc.InitiatePayment(ctx, user, req.OrderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"payment_intent_id": in.ID,
		"client_secret":     in.ClientSecret,
	})
}

func (h *PaymentsHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req confirmPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payment_intent_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	o, err := h.Svc.ConfirmPayment(ctx, user, req.PaymentIntentID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// webhook: endpoint publik untuk provider; auth-nya ya signature itu.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.HandleWebhook(ctx, raw, r.Header.Get("Provider-Signature")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
