package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/campus-eats/internal/payments"
)

// memStore: implementasi Store in-memory untuk test. Check-and-reserve dan
// gate payment dilindungi satu mutex, jadi invariannya sama dengan repo
// Postgres (yang pakai row lock).
type memStore struct {
	mu       sync.Mutex
	items    map[string]MenuItemRef
	orders   map[string]*Order
	byRef    map[string]string
	sequence []string // urutan create, untuk listing terbaru-dulu
	seq      int64
}

func newMemStore(items ...MenuItemRef) *memStore {
	s := &memStore{
		items:  map[string]MenuItemRef{},
		orders: map[string]*Order{},
		byRef:  map[string]string{},
	}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *memStore) item(id string) MenuItemRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memStore) CreateOrder(ctx context.Context, userID string, cart []CartLine, instructions string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	o, err := NewOrder(fmt.Sprintf("order-%d", s.seq), FormatNumber(s.seq), userID, cart, s.items, instructions, time.Now().UTC())
	if err != nil {
		s.seq--
		return nil, err
	}
	for _, l := range o.Lines {
		it := s.items[l.ItemID]
		it.Stock -= l.Qty
		if it.Stock == 0 {
			it.Available = false
		}
		s.items[l.ItemID] = it
	}
	s.orders[o.ID] = o
	s.sequence = append(s.sequence, o.ID)
	return o, nil
}

func (s *memStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *memStore) GetOrderByPaymentRef(ctx context.Context, ref string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return s.orders[id], nil
}

func (s *memStore) ListOrders(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*Order
	for i := len(s.sequence) - 1; i >= 0; i-- {
		o := s.orders[s.sequence[i]]
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o)
	}

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, orderID string, next Status, actorID, note, reason string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := o.ApplyTransition(next, actorID, note, time.Now().UTC()); err != nil {
		return nil, err
	}
	if next == StatusCancelled {
		o.CancellationReason = reason
		for _, l := range o.Lines {
			it := s.items[l.ItemID]
			it.Stock += l.Qty
			it.Available = true
			s.items[l.ItemID] = it
		}
	}
	return o, nil
}

func (s *memStore) SetPaymentRef(ctx context.Context, orderID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	o.PaymentRef = ref
	o.PaymentStatus = PaymentPending
	s.byRef[ref] = orderID
	return nil
}

func (s *memStore) ApplyPaymentOutcome(ctx context.Context, ref string, succeeded bool, note string) (*Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byRef[ref]
	if !ok {
		return nil, false, ErrNotFound
	}
	o := s.orders[id]
	changed := o.ReconcilePayment(succeeded, note, time.Now().UTC())
	return o, changed, nil
}

// ---- mock provider ----

type mockProvider struct {
	mu          sync.Mutex
	intents     map[string]payments.Intent
	createErr   error
	retrieveErr error
	n           int
}

func newMockProvider() *mockProvider {
	return &mockProvider{intents: map[string]payments.Intent{}}
}

func (p *mockProvider) CreateIntent(ctx context.Context, amountCents int, currency string, metadata map[string]string) (payments.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return payments.Intent{}, p.createErr
	}
	p.n++
	in := payments.Intent{
		ID:           fmt.Sprintf("pi_%d", p.n),
		ClientSecret: fmt.Sprintf("pi_%d_secret", p.n),
		Status:       payments.IntentProcessing,
	}
	p.intents[in.ID] = in
	return in, nil
}

func (p *mockProvider) RetrieveIntent(ctx context.Context, id string) (payments.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retrieveErr != nil {
		return payments.Intent{}, p.retrieveErr
	}
	in, ok := p.intents[id]
	if !ok {
		return payments.Intent{}, fmt.Errorf("no such intent: %s", id)
	}
	return in, nil
}

func (p *mockProvider) settle(id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := p.intents[id]
	in.Status = status
	p.intents[id] = in
}

const testSig = "t=0,v1=valid"

func (p *mockProvider) VerifyWebhook(raw []byte, sigHeader string) (payments.Event, error) {
	// HMAC asli dites di package payments; di sini cukup valid/invalid.
	if sigHeader != testSig {
		return payments.Event{}, payments.ErrVerification
	}
	var body struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return payments.Event{}, err
	}
	return payments.Event{ID: body.ID, Type: body.Type, IntentID: body.Data.Object.ID}, nil
}

// ---- mock notifier ----

type emitted struct {
	Channel string
	Event   string
	Payload any
}

type mockNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *mockNotifier) Emit(ctx context.Context, channel, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{Channel: channel, Event: event, Payload: payload})
}

func (n *mockNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == event {
			c++
		}
	}
	return c
}
