package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/campus-eats/internal/orders"
	"github.com/ariefcatur/campus-eats/internal/redisx"
)

// StatusCache dipenuhi *redisx.StatusCache; Get mengembalikan user id
// pemilik supaya handler bisa cek scoping sebelum melayani dari cache.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (string, redisx.OrderStatus, bool)
	Set(ctx context.Context, orderID, userID, status, paymentStatus string)
}

type OrdersHandler struct {
	Svc   *orders.Service
	Cache StatusCache
}

type createOrderReq struct {
	Items        []orders.CartLine `json:"items"`
	Instructions string            `json:"special_instructions"`
}

type updateStatusReq struct {
	Status             string `json:"status"`
	Notes              string `json:"notes"`
	CancellationReason string `json:"cancellation_reason"`
}

type listResp struct {
	Orders     []*orders.Order `json:"orders"`
	Pagination pagination      `json:"pagination"`
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
	PerPage     int `json:"per_page"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Create(ctx, user, req.Items, req.Instructions)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Get(ctx, user, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus: endpoint polling ringan, coba cache dulu baru DB.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Cache hanya boleh melayani pemilik order (atau staff); selain itu
	// jatuh ke Svc.Get yang menjawab not found untuk order orang lain.
	if h.Cache != nil {
		if owner, st, ok := h.Cache.Get(ctx, orderID); ok && (user.Privileged() || owner == user.UserID) {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	o, err := h.Svc.Get(ctx, user, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	st := redisx.OrderStatus{Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
	if h.Cache != nil {
		h.Cache.Set(ctx, o.ID, o.UserID, st.Status, st.PaymentStatus)
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	q := r.URL.Query()
	f := orders.ListFilter{
		Status: orders.Status(q.Get("status")),
		Page:   atoiDefault(q.Get("page"), 1),
		Limit:  atoiDefault(q.Get("limit"), 10),
	}
	// limit dipakai sebagai pembagi di pagination, jadi tolak di sini,
	// jangan andalkan normalisasi service
	if f.Page < 1 || f.Limit < 1 {
		writeErr(w, orders.Invalidf("page and limit must be positive"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	os, total, err := h.Svc.List(ctx, user, f)
	if err != nil {
		writeErr(w, err)
		return
	}
	totalPages := (total + f.Limit - 1) / f.Limit
	writeJSON(w, http.StatusOK, listResp{
		Orders: os,
		Pagination: pagination{
			CurrentPage: f.Page, TotalPages: totalPages, TotalItems: total, PerPage: f.Limit,
		},
	})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.UpdateStatus(ctx, user, chi.URLParam(r, "id"),
		orders.Status(req.Status), req.Notes, req.CancellationReason)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
