package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrForbidden: role tidak punya izin untuk mutasi yang diminta.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyPaid: initiate payment untuk order yang sudah paid.
	ErrAlreadyPaid = errors.New("order is already paid")
	// ErrPaymentFailed: provider melaporkan payment yang sudah settled gagal.
	ErrPaymentFailed = errors.New("payment failed")
)

// ValidationError: input caller salah, tidak ada state change.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type ItemNotFoundError struct{ ItemID string }

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item not found: %s", e.ItemID)
}

type ItemUnavailableError struct {
	ItemID string
	Name   string
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("%s is currently unavailable", e.Name)
}

type InsufficientStockError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

type InvalidTransitionError struct{ From, To Status }

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// UpstreamError: payment provider unreachable / respons tak terduga. Retryable.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("payment provider: %s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// IsConflict mengelompokkan error yang di-surface sebagai 409.
func IsConflict(err error) bool {
	var unavail *ItemUnavailableError
	var stock *InsufficientStockError
	var trans *InvalidTransitionError
	return errors.As(err, &unavail) ||
		errors.As(err, &stock) ||
		errors.As(err, &trans) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrPaymentFailed)
}
