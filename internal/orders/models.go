package orders

import "time"

// MenuItemRef adalah proyeksi read-only dari katalog. Mutasi stok hanya
// lewat reserve/release di store.
type MenuItemRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PriceCents  int       `json:"price_cents"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
	PrepMinutes int       `json:"prep_minutes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderLine: nama & harga di-snapshot saat order dibuat, tidak ikut berubah
// kalau item katalog diedit belakangan. Immutable setelah create.
type OrderLine struct {
	ItemID        string `json:"item_id"`
	Name          string `json:"name"`
	PriceCents    int    `json:"price_cents"`
	Qty           int    `json:"qty"`
	SubtotalCents int    `json:"subtotal_cents"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// StatusEntry adalah satu baris di status history (append-only).
type StatusEntry struct {
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
	ActorID string    `json:"actor_id,omitempty"` // kosong untuk transisi sistem (mis. payment)
	Note    string    `json:"note,omitempty"`
}

type Order struct {
	ID                   string        `json:"id"`
	Number               string        `json:"order_number"`
	UserID               string        `json:"user_id"`
	Lines                []OrderLine   `json:"lines"`
	Status               Status        `json:"status"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	PaymentRef           string        `json:"payment_ref,omitempty"`
	SubtotalCents        int           `json:"subtotal_cents"`
	TaxCents             int           `json:"tax_cents"`
	TotalCents           int           `json:"total_cents"`
	EstimatedPrepMinutes int           `json:"estimated_prep_minutes"`
	// ActualPrepMinutes hanya valid setelah CompletedAt terisi.
	ActualPrepMinutes  int           `json:"actual_prep_minutes,omitempty"`
	Instructions       string        `json:"special_instructions,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	History            []StatusEntry `json:"status_history"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// CartLine adalah input mentah dari client.
type CartLine struct {
	ItemID string `json:"menu_item_id"`
	Qty    int    `json:"qty"`
}

// Identity datang dari layer auth di luar core (opaque id + role).
type Identity struct {
	UserID string
	Role   string
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Privileged: admin & staff boleh lihat semua order dan ubah status.
func (id Identity) Privileged() bool {
	return id.Role == RoleAdmin || id.Role == RoleStaff
}
