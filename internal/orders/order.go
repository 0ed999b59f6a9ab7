package orders

import "time"

const (
	MaxInstructionsLen = 500
	MaxNoteLen         = 200
	MaxReasonLen       = 200

	// Estimasi prep = max prep time item + buffer. Kebijakan produk, jangan
	// diganti heuristik lain.
	PrepBufferMinutes = 5
)

// ValidateCart: cek bentuk input sebelum menyentuh store sama sekali.
func ValidateCart(cart []CartLine, instructions string) error {
	if len(cart) == 0 {
		return Invalidf("order must contain at least one item")
	}
	seen := map[string]bool{}
	for _, l := range cart {
		if l.ItemID == "" {
			return Invalidf("missing menu item id")
		}
		if l.Qty < 1 {
			return Invalidf("qty must be at least 1 for item %s", l.ItemID)
		}
		if seen[l.ItemID] {
			return Invalidf("duplicate menu item in cart: %s", l.ItemID)
		}
		seen[l.ItemID] = true
	}
	if len(instructions) > MaxInstructionsLen {
		return Invalidf("special instructions cannot exceed %d characters", MaxInstructionsLen)
	}
	return nil
}

// NewOrder membangun aggregate dari cart + item katalog yang sudah
// di-resolve. Gagal dengan ItemNotFound/ItemUnavailable/InsufficientStock
// sebelum ada mutasi apapun; caller (store) yang menjamin snapshot stok di
// sini konsisten dengan decrement-nya (satu transaksi).
func NewOrder(id, number, userID string, cart []CartLine, items map[string]MenuItemRef, instructions string, now time.Time) (*Order, error) {
	if err := ValidateCart(cart, instructions); err != nil {
		return nil, err
	}

	lines := make([]OrderLine, 0, len(cart))
	subtotal := 0
	maxPrep := 0
	for _, cl := range cart {
		item, ok := items[cl.ItemID]
		if !ok {
			return nil, &ItemNotFoundError{ItemID: cl.ItemID}
		}
		if !item.Available {
			return nil, &ItemUnavailableError{ItemID: item.ID, Name: item.Name}
		}
		if item.Stock < cl.Qty {
			return nil, &InsufficientStockError{
				ItemID: item.ID, Name: item.Name,
				Requested: cl.Qty, Available: item.Stock,
			}
		}

		sub := item.PriceCents * cl.Qty
		subtotal += sub
		if item.PrepMinutes > maxPrep {
			maxPrep = item.PrepMinutes
		}
		lines = append(lines, OrderLine{
			ItemID:        item.ID,
			Name:          item.Name,
			PriceCents:    item.PriceCents,
			Qty:           cl.Qty,
			SubtotalCents: sub,
		})
	}

	tax := TaxCents(subtotal)
	o := &Order{
		ID:                   id,
		Number:               number,
		UserID:               userID,
		Lines:                lines,
		Status:               StatusPlaced,
		PaymentStatus:        PaymentPending,
		SubtotalCents:        subtotal,
		TaxCents:             tax,
		TotalCents:           subtotal + tax,
		EstimatedPrepMinutes: maxPrep + PrepBufferMinutes,
		Instructions:         instructions,
		History:              []StatusEntry{{Status: StatusPlaced, At: now}},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return o, nil
}

// ReconcilePayment menerapkan outcome provider yang sudah settled ke
// aggregate. Satu-satunya gate anti double-apply: kalau sudah paid, apapun
// yang datang belakangan jadi no-op. Kedua jalur (confirm langsung &
// webhook) lewat fungsi ini.
func (o *Order) ReconcilePayment(succeeded bool, note string, now time.Time) (changed bool) {
	if o.PaymentStatus == PaymentPaid {
		return false
	}
	if !succeeded {
		if o.PaymentStatus == PaymentFailed {
			return false
		}
		// failed tidak meng-cancel order dan tidak melepas stok; butuh
		// intervensi staff atau retry payment.
		o.PaymentStatus = PaymentFailed
		o.UpdatedAt = now
		return true
	}

	o.PaymentStatus = PaymentPaid
	if o.Status == StatusPlaced {
		// placed -> confirmed; kalau staff sudah meng-confirm duluan, biarkan.
		_ = o.ApplyTransition(StatusConfirmed, "", note, now)
	}
	o.UpdatedAt = now
	return true
}
