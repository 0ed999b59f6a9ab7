package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/campus-eats/internal/orders"
	"github.com/ariefcatur/campus-eats/internal/redisx"
)

// stubStore: cukup untuk endpoint read; test di file ini tidak menyentuh
// mutasi (itu urusan suite di package orders).
type stubStore struct {
	orders map[string]*orders.Order
}

func (s *stubStore) CreateOrder(ctx context.Context, userID string, cart []orders.CartLine, instructions string) (*orders.Order, error) {
	return nil, orders.ErrNotFound
}

func (s *stubStore) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return o, nil
}

func (s *stubStore) GetOrderByPaymentRef(ctx context.Context, ref string) (*orders.Order, error) {
	return nil, orders.ErrNotFound
}

func (s *stubStore) ListOrders(ctx context.Context, f orders.ListFilter) ([]*orders.Order, int, error) {
	return nil, 0, nil
}

func (s *stubStore) UpdateStatus(ctx context.Context, orderID string, next orders.Status, actorID, note, reason string) (*orders.Order, error) {
	return nil, orders.ErrNotFound
}

func (s *stubStore) SetPaymentRef(ctx context.Context, orderID, ref string) error {
	return orders.ErrNotFound
}

func (s *stubStore) ApplyPaymentOutcome(ctx context.Context, ref string, succeeded bool, note string) (*orders.Order, bool, error) {
	return nil, false, orders.ErrNotFound
}

type fakeCache struct {
	owners map[string]string
	stats  map[string]redisx.OrderStatus
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{owners: map[string]string{}, stats: map[string]redisx.OrderStatus{}}
}

func (c *fakeCache) Get(ctx context.Context, orderID string) (string, redisx.OrderStatus, bool) {
	st, ok := c.stats[orderID]
	return c.owners[orderID], st, ok
}

func (c *fakeCache) Set(ctx context.Context, orderID, userID, status, paymentStatus string) {
	c.owners[orderID] = userID
	c.stats[orderID] = redisx.OrderStatus{Status: status, PaymentStatus: paymentStatus}
	c.sets++
}

func newTestRouter(store orders.Store, cache StatusCache) *chi.Mux {
	svc := &orders.Service{Store: store, Log: zerolog.Nop()}
	r := NewRouter()
	(&OrdersHandler{Svc: svc, Cache: cache}).Register(r)
	return r
}

func doGet(r *chi.Mux, path, userID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-User-Id", userID)
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListOrdersRejectsNonPositivePaging(t *testing.T) {
	r := newTestRouter(&stubStore{}, nil)

	for _, q := range []string{"limit=0", "limit=-3", "page=0", "page=-1"} {
		rec := doGet(r, "/orders?"+q, "user-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListOrdersDefaultPaging(t *testing.T) {
	r := newTestRouter(&stubStore{}, nil)

	rec := doGet(r, "/orders", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pagination.CurrentPage)
	assert.Equal(t, 10, resp.Pagination.PerPage)
	assert.Equal(t, 0, resp.Pagination.TotalPages)
}

func TestGetOrderStatusScoping(t *testing.T) {
	store := &stubStore{orders: map[string]*orders.Order{
		"order-1": {ID: "order-1", UserID: "user-1", Status: orders.StatusPlaced, PaymentStatus: orders.PaymentPending},
	}}
	cache := newFakeCache()
	// cache sengaja beda dari DB supaya kelihatan jalur mana yang melayani
	cache.Set(context.Background(), "order-1", "user-1", string(orders.StatusConfirmed), string(orders.PaymentPaid))
	r := newTestRouter(store, cache)

	// pemilik: dilayani dari cache
	rec := doGet(r, "/orders/order-1/status", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st redisx.OrderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, string(orders.StatusConfirmed), st.Status)
	assert.Equal(t, string(orders.PaymentPaid), st.PaymentStatus)

	// user lain: cache hit tidak boleh bocor; scoping DB menjawab not found
	rec = doGet(r, "/orders/order-1/status", "user-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), string(orders.StatusConfirmed))

	// staff boleh lihat semua order
	rec = doGet(r, "/orders/order-1/status", "staff-1", orders.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, string(orders.StatusConfirmed), st.Status)
}

func TestGetOrderStatusCacheMissFallsBackToStore(t *testing.T) {
	store := &stubStore{orders: map[string]*orders.Order{
		"order-1": {ID: "order-1", UserID: "user-1", Status: orders.StatusPreparing, PaymentStatus: orders.PaymentPaid},
	}}
	cache := newFakeCache()
	r := newTestRouter(store, cache)

	rec := doGet(r, "/orders/order-1/status", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st redisx.OrderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, string(orders.StatusPreparing), st.Status)

	// hasil DB di-warm balik ke cache, lengkap dengan pemiliknya
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, "user-1", cache.owners["order-1"])
}
