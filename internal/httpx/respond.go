package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/campus-eats/internal/orders"
	"github.com/ariefcatur/campus-eats/internal/payments"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var ve *orders.ValidationError
	var nf *orders.ItemNotFoundError
	var up *orders.UpstreamError
	switch {
	case errors.As(err, &ve), errors.Is(err, payments.ErrVerification):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound), errors.As(err, &nf):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case orders.IsConflict(err):
		return http.StatusConflict
	case errors.As(err, &up):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Identity diambil dari header yang dipasang auth layer di depan (di luar
// scope core ini). Tanpa user id = unauthenticated.
func identity(r *http.Request) (orders.Identity, bool) {
	id := orders.Identity{
		UserID: r.Header.Get("X-User-Id"),
		Role:   r.Header.Get("X-User-Role"),
	}
	return id, id.UserID != ""
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
}
