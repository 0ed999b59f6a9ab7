package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo adalah store Postgres untuk orders + inventory ledger. Katalog dan
// ledger memang satu store yang sama; core cuma butuh reserve/release.
type Repo struct{ DB *pgxpool.Pool }

// querier dipenuhi oleh *pgxpool.Pool dan pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const orderCols = `id, order_number, user_id, status, payment_status, payment_ref,
	subtotal_cents, tax_cents, total_cents, estimated_prep_minutes, actual_prep_minutes,
	special_instructions, cancellation_reason, completed_at, cancelled_at, created_at, updated_at`

// CreateOrder: "cek stok, reserve, persist order" sebagai satu transaksi.
// Item rows di-lock (FOR UPDATE) sebelum validasi supaya dua order
// concurrent tidak bisa sama-sama lolos dengan stok yang sama.
func (r *Repo) CreateOrder(ctx context.Context, userID string, cart []CartLine, instructions string) (*Order, error) {
	if err := ValidateCart(cart, instructions); err != nil {
		return nil, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, err := lockItems(ctx, tx, cart)
	if err != nil {
		return nil, err
	}

	// nextval dari sequence: race-free walau banyak create paralel.
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return nil, err
	}

	o, err := NewOrder(uuid.NewString(), FormatNumber(seq), userID, cart, items, instructions, time.Now().UTC())
	if err != nil {
		return nil, err // rollback via defer, belum ada mutasi
	}

	// Stok sudah divalidasi terhadap snapshot yang di-lock; tinggal decrement.
	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			UPDATE menu_items
			SET stock = stock - $2, is_available = (stock - $2) > 0, updated_at = now()
			WHERE id = $1`, l.ItemID, l.Qty); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, status, payment_status,
			subtotal_cents, tax_cents, total_cents, estimated_prep_minutes,
			special_instructions, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		o.ID, o.Number, o.UserID, string(o.Status), string(o.PaymentStatus),
		o.SubtotalCents, o.TaxCents, o.TotalCents, o.EstimatedPrepMinutes,
		nullable(o.Instructions), o.CreatedAt); err != nil {
		return nil, err
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines(order_id, item_id, name, price_cents, qty, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, l.ItemID, l.Name, l.PriceCents, l.Qty, l.SubtotalCents); err != nil {
			return nil, err
		}
	}
	if err := insertHistory(ctx, tx, o.ID, o.History[0]); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// lockItems mengambil & me-lock item katalog yang disebut cart.
// ORDER BY id supaya urutan lock konsisten antar transaksi (hindari deadlock).
func lockItems(ctx context.Context, q querier, cart []CartLine) (map[string]MenuItemRef, error) {
	params := ""
	ids := make([]any, 0, len(cart))
	for i, cl := range cart {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		ids = append(ids, cl.ItemID)
	}
	rows, err := q.Query(ctx, `
		SELECT id, name, price_cents, stock, is_available, prep_minutes, created_at, updated_at
		FROM menu_items WHERE id IN (`+params+`) ORDER BY id FOR UPDATE`, ids...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := map[string]MenuItemRef{}
	for rows.Next() {
		var it MenuItemRef
		if err := rows.Scan(&it.ID, &it.Name, &it.PriceCents, &it.Stock, &it.Available,
			&it.PrepMinutes, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items[it.ID] = it
	}
	return items, rows.Err()
}

// ReserveItems: kontrak ledger — all-or-nothing. Kalau satu item kurang,
// tidak ada perubahan yang di-commit.
func (r *Repo) ReserveItems(ctx context.Context, items []CartLine) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := reserveTx(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func reserveTx(ctx context.Context, tx pgx.Tx, items []CartLine) error {
	for _, it := range sortedCart(items) {
		var name string
		var stock int
		var available bool
		err := tx.QueryRow(ctx, `SELECT name, stock, is_available FROM menu_items WHERE id=$1 FOR UPDATE`,
			it.ItemID).Scan(&name, &stock, &available)
		if errors.Is(err, pgx.ErrNoRows) {
			return &ItemNotFoundError{ItemID: it.ItemID}
		}
		if err != nil {
			return err
		}
		if !available {
			return &ItemUnavailableError{ItemID: it.ItemID, Name: name}
		}
		if stock < it.Qty {
			return &InsufficientStockError{ItemID: it.ItemID, Name: name, Requested: it.Qty, Available: stock}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE menu_items
			SET stock = stock - $2, is_available = (stock - $2) > 0, updated_at = now()
			WHERE id = $1`, it.ItemID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseItems mengembalikan stok (cancel). Stok jadi positif -> available lagi.
func (r *Repo) ReleaseItems(ctx context.Context, items []CartLine) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := releaseTx(ctx, tx, items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func releaseTx(ctx context.Context, tx pgx.Tx, items []CartLine) error {
	for _, it := range sortedCart(items) {
		if _, err := tx.Exec(ctx, `
			UPDATE menu_items
			SET stock = stock + $2, is_available = TRUE, updated_at = now()
			WHERE id = $1`, it.ItemID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.getOrder(ctx, r.DB, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID)
}

func (r *Repo) GetOrderByPaymentRef(ctx context.Context, ref string) (*Order, error) {
	return r.getOrder(ctx, r.DB, `SELECT `+orderCols+` FROM orders WHERE payment_ref=$1`, ref)
}

func (r *Repo) getOrder(ctx context.Context, q querier, sql string, arg any) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Lines, err = queryLines(ctx, q, o.ID); err != nil {
		return nil, err
	}
	if o.History, err = queryHistory(ctx, q, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]*Order, int, error) {
	where := ""
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, len(args))
	}
	if f.UserID != "" {
		add("user_id=$%d", f.UserID)
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders`+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Lines di-load sekali untuk satu page; history sengaja tidak ikut di
	// listing (cuma di GetOrder).
	if err := r.attachLines(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) attachLines(ctx context.Context, os []*Order) error {
	if len(os) == 0 {
		return nil
	}
	ids := make([]string, 0, len(os))
	byID := map[string]*Order{}
	for _, o := range os {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, item_id, name, price_cents, qty, subtotal_cents
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var l OrderLine
		if err := rows.Scan(&orderID, &l.ItemID, &l.Name, &l.PriceCents, &l.Qty, &l.SubtotalCents); err != nil {
			return err
		}
		if o := byID[orderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

// UpdateStatus menerapkan transisi dalam satu transaksi. Row order di-lock
// dulu, jadi dua transisi untuk order yang sama otomatis serial, dan
// validasi transisi selalu terhadap status yang sedang ter-commit.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, next Status, actorID, note, reason string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.getOrder(ctx, tx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := o.ApplyTransition(next, actorID, note, now); err != nil {
		return nil, err
	}
	if next == StatusCancelled {
		o.CancellationReason = reason
		// Satu-satunya jalur stok reserved kembali ke availability selain
		// fulfillment normal (yang memang mengkonsumsi stok).
		if err := releaseTx(ctx, tx, linesToCart(o.Lines)); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, actual_prep_minutes=$3, completed_at=$4, cancelled_at=$5,
			cancellation_reason=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, string(o.Status), nullableInt(o.ActualPrepMinutes, o.CompletedAt != nil),
		o.CompletedAt, o.CancelledAt, nullable(o.CancellationReason), o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := insertHistory(ctx, tx, o.ID, o.History[len(o.History)-1]); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// SetPaymentRef menyimpan payment intent id. Sekali terpasang stabil,
// kecuali payment sebelumnya failed dan di-retry (status balik ke pending).
func (r *Repo) SetPaymentRef(ctx context.Context, orderID, ref string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_ref=$2, payment_status='pending', updated_at=now()
		WHERE id=$1 AND payment_status IN ('pending','failed')`, orderID, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var one int
	err = r.DB.QueryRow(ctx, `SELECT 1 FROM orders WHERE id=$1`, orderID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyPaid
}

// ApplyPaymentOutcome: gate idempoten untuk kedua jalur konfirmasi. Row
// di-lock, ReconcilePayment cek "already paid", baru persist. Delivery
// ganda/terbalik berujung no-op (changed=false).
func (r *Repo) ApplyPaymentOutcome(ctx context.Context, ref string, succeeded bool, note string) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.getOrder(ctx, tx, `SELECT `+orderCols+` FROM orders WHERE payment_ref=$1 FOR UPDATE`, ref)
	if err != nil {
		return nil, false, err
	}

	before := len(o.History)
	if !o.ReconcilePayment(succeeded, note, time.Now().UTC()) {
		return o, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, status=$3, updated_at=$4 WHERE id=$1`,
		o.ID, string(o.PaymentStatus), string(o.Status), o.UpdatedAt); err != nil {
		return nil, false, err
	}
	if len(o.History) > before {
		if err := insertHistory(ctx, tx, o.ID, o.History[len(o.History)-1]); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// ---- helpers ----

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status, payStatus string
	var ref, instr, reason *string
	var actual *int
	if err := row.Scan(&o.ID, &o.Number, &o.UserID, &status, &payStatus, &ref,
		&o.SubtotalCents, &o.TaxCents, &o.TotalCents, &o.EstimatedPrepMinutes, &actual,
		&instr, &reason, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	if ref != nil {
		o.PaymentRef = *ref
	}
	if instr != nil {
		o.Instructions = *instr
	}
	if reason != nil {
		o.CancellationReason = *reason
	}
	if actual != nil {
		o.ActualPrepMinutes = *actual
	}
	return &o, nil
}

func queryLines(ctx context.Context, q querier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT item_id, name, price_cents, qty, subtotal_cents
		FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.PriceCents, &l.Qty, &l.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func queryHistory(ctx context.Context, q querier, orderID string) ([]StatusEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT status, changed_at, actor_id, note
		FROM status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusEntry
	for rows.Next() {
		var e StatusEntry
		var status string
		var actor, note *string
		if err := rows.Scan(&status, &e.At, &actor, &note); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		if actor != nil {
			e.ActorID = *actor
		}
		if note != nil {
			e.Note = *note
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q querier, orderID string, e StatusEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO status_history(order_id, status, changed_at, actor_id, note)
		VALUES ($1,$2,$3,$4,$5)`,
		orderID, string(e.Status), e.At, nullable(e.ActorID), nullable(e.Note))
	return err
}

// sortedCart: urutan lock item harus sama di semua transaksi (reserve dan
// release), kalau tidak dua cancel/create yang share item bisa deadlock.
func sortedCart(items []CartLine) []CartLine {
	out := make([]CartLine, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func linesToCart(lines []OrderLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLine{ItemID: l.ItemID, Qty: l.Qty})
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(n int, ok bool) *int {
	if !ok {
		return nil
	}
	return &n
}
