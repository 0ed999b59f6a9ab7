package orders

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/campus-eats/internal/payments"
)

// Store adalah port persistence + inventory ledger. Implementasi Postgres
// di repo.go; test pakai versi in-memory.
type Store interface {
	CreateOrder(ctx context.Context, userID string, cart []CartLine, instructions string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderByPaymentRef(ctx context.Context, ref string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]*Order, int, error)
	UpdateStatus(ctx context.Context, orderID string, next Status, actorID, note, reason string) (*Order, error)
	SetPaymentRef(ctx context.Context, orderID, ref string) error
	ApplyPaymentOutcome(ctx context.Context, ref string, succeeded bool, note string) (*Order, bool, error)
}

// Notifier: outbound port, fire-and-forget. Gagal kirim tidak boleh
// menggagalkan operasi utamanya.
type Notifier interface {
	Emit(ctx context.Context, channel, event string, payload any)
}

// Deduper memotong event webhook yang dikirim ulang. Optional: gate
// "already paid" di store tetap jadi mekanisme correctness-nya.
type Deduper interface {
	Claim(ctx context.Context, eventID string) bool
}

// StatusCache: cache kecil untuk polling status. Optional, best-effort.
// User id pemilik ikut disimpan supaya pembaca cache bisa cek scoping.
type StatusCache interface {
	Set(ctx context.Context, orderID, userID, status, paymentStatus string)
}

type ListFilter struct {
	UserID string
	Status Status
	Page   int
	Limit  int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Service struct {
	Store    Store
	Provider payments.Provider
	Notifier Notifier
	Dedup    Deduper
	Cache    StatusCache
	Currency string
	Log      zerolog.Logger
}

// Create memvalidasi cart lalu menyerahkan reserve+persist ke store (satu
// transaksi). Notifikasi dikirim setelah commit; begitu order ter-persist,
// operasi dianggap selesai walau response gagal terkirim.
func (s *Service) Create(ctx context.Context, user Identity, cart []CartLine, instructions string) (*Order, error) {
	o, err := s.Store.CreateOrder(ctx, user.UserID, cart, instructions)
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("order", o.Number).Str("user", o.UserID).Int("total_cents", o.TotalCents).Msg("order placed")

	s.cacheStatus(ctx, o)
	s.Notifier.Emit(ctx, UserChannel(o.UserID), EventOrderPlaced, OrderPlacedPayload{
		OrderID: o.ID, OrderNumber: o.Number, Status: o.Status,
		EstimatedPrepMinutes: o.EstimatedPrepMinutes,
	})
	s.Notifier.Emit(ctx, ChannelStaff, EventNewOrder, NewOrderPayload{
		OrderID: o.ID, OrderNumber: o.Number, UserID: o.UserID,
		TotalCents: o.TotalCents, ItemCount: len(o.Lines),
	})
	return o, nil
}

// Get: user biasa cuma boleh lihat order miliknya. Order orang lain
// dijawab not found, bukan forbidden, supaya keberadaannya tidak bocor.
func (s *Service) Get(ctx context.Context, user Identity, orderID string) (*Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !user.Privileged() && o.UserID != user.UserID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, user Identity, f ListFilter) ([]*Order, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, Invalidf("invalid status filter: %s", f.Status)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		return nil, 0, Invalidf("limit must be between 1 and %d", maxPageSize)
	}
	if !user.Privileged() {
		f.UserID = user.UserID
	}
	return s.Store.ListOrders(ctx, f)
}

// UpdateStatus: staff-only. Validasi transisi dan pelepasan stok saat
// cancel terjadi atomik di store.
func (s *Service) UpdateStatus(ctx context.Context, actor Identity, orderID string, next Status, note, reason string) (*Order, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	if !ValidStatus(next) {
		return nil, Invalidf("invalid status: %s", next)
	}
	if len(note) > MaxNoteLen {
		return nil, Invalidf("notes cannot exceed %d characters", MaxNoteLen)
	}
	if len(reason) > MaxReasonLen {
		return nil, Invalidf("cancellation reason cannot exceed %d characters", MaxReasonLen)
	}

	o, err := s.Store.UpdateStatus(ctx, orderID, next, actor.UserID, note, reason)
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("order", o.Number).Str("status", string(o.Status)).Str("actor", actor.UserID).Msg("status updated")

	s.cacheStatus(ctx, o)
	s.Notifier.Emit(ctx, UserChannel(o.UserID), EventStatusUpdate, StatusUpdatePayload{
		OrderID: o.ID, OrderNumber: o.Number, Status: o.Status, Message: StatusMessage(o.Status),
	})
	s.Notifier.Emit(ctx, ChannelStaff, EventStatusChanged, StatusUpdatePayload{
		OrderID: o.ID, OrderNumber: o.Number, Status: o.Status, UpdatedBy: actor.UserID,
	})
	return o, nil
}

// InitiatePayment membuat payment intent sebesar total order (minor units).
// Error provider dibungkus UpstreamError; payment status tetap pending jadi
// client bisa retry.
func (s *Service) InitiatePayment(ctx context.Context, user Identity, orderID string) (payments.Intent, error) {
	o, err := s.Get(ctx, user, orderID)
	if err != nil {
		return payments.Intent{}, err
	}
	if o.PaymentStatus == PaymentPaid {
		return payments.Intent{}, ErrAlreadyPaid
	}

	in, err := s.Provider.CreateIntent(ctx, o.TotalCents, s.Currency, map[string]string{
		"order_id":     o.ID,
		"order_number": o.Number,
		"user_id":      o.UserID,
	})
	if err != nil {
		return payments.Intent{}, &UpstreamError{Op: "create intent", Err: err}
	}
	if err := s.Store.SetPaymentRef(ctx, o.ID, in.ID); err != nil {
		return payments.Intent{}, err
	}
	return in, nil
}

// ConfirmPayment: jalur sinkron. Ambil status intent dari provider, lalu
// lewat gate idempoten yang sama dengan webhook. Konfirmasi ulang untuk
// order yang sudah paid adalah no-op sukses.
func (s *Service) ConfirmPayment(ctx context.Context, user Identity, paymentRef string) (*Order, error) {
	in, err := s.Provider.RetrieveIntent(ctx, paymentRef)
	if err != nil {
		return nil, &UpstreamError{Op: "retrieve intent", Err: err}
	}

	o, err := s.Store.GetOrderByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if !user.Privileged() && o.UserID != user.UserID {
		return nil, ErrNotFound
	}

	switch in.Status {
	case payments.IntentSucceeded:
		o, _, err = s.applyOutcome(ctx, paymentRef, true, "Payment confirmed")
		return o, err
	case payments.IntentCanceled:
		if _, _, err := s.applyOutcome(ctx, paymentRef, false, ""); err != nil {
			return nil, err
		}
		return nil, ErrPaymentFailed
	default:
		// belum settled; tidak ada state change, client coba lagi nanti
		return nil, Invalidf("payment not completed")
	}
}

// HandleWebhook: jalur async dari provider. Signature diverifikasi dulu;
// event untuk ref yang tidak dikenal di-ack saja supaya provider tidak
// retry selamanya.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, sigHeader string) error {
	ev, err := s.Provider.VerifyWebhook(raw, sigHeader)
	if err != nil {
		s.Log.Warn().Err(err).Msg("webhook rejected")
		return err
	}
	if s.Dedup != nil && !s.Dedup.Claim(ctx, ev.ID) {
		return nil
	}

	var succeeded bool
	switch ev.Type {
	case payments.EventIntentSucceeded:
		succeeded = true
	case payments.EventIntentFailed:
		succeeded = false
	default:
		s.Log.Debug().Str("type", ev.Type).Msg("unhandled webhook event type")
		return nil
	}

	note := ""
	if succeeded {
		note = "Payment confirmed via webhook"
	}
	if _, _, err := s.applyOutcome(ctx, ev.IntentID, succeeded, note); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Log.Warn().Str("intent", ev.IntentID).Msg("webhook for unknown payment ref")
			return nil
		}
		return err
	}
	return nil
}

// applyOutcome: satu-satunya pintu penerapan hasil payment, dipakai kedua
// jalur. changed=false artinya gate sudah menutup duluan (no-op).
func (s *Service) applyOutcome(ctx context.Context, ref string, succeeded bool, note string) (*Order, bool, error) {
	o, changed, err := s.Store.ApplyPaymentOutcome(ctx, ref, succeeded, note)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return o, false, nil
	}

	s.cacheStatus(ctx, o)
	if succeeded {
		s.Log.Info().Str("order", o.Number).Msg("payment confirmed")
		s.Notifier.Emit(ctx, UserChannel(o.UserID), EventPaymentConfirmed, PaymentConfirmedPayload{
			OrderID: o.ID, OrderNumber: o.Number, Status: o.Status,
		})
		s.Notifier.Emit(ctx, ChannelStaff, EventStatusChanged, StatusUpdatePayload{
			OrderID: o.ID, OrderNumber: o.Number, Status: o.Status,
		})
	} else {
		s.Log.Warn().Str("order", o.Number).Msg("payment failed")
	}
	return o, true, nil
}

func (s *Service) cacheStatus(ctx context.Context, o *Order) {
	if s.Cache != nil {
		s.Cache.Set(ctx, o.ID, o.UserID, string(o.Status), string(o.PaymentStatus))
	}
}
