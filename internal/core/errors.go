package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the broad failure classes. Operations wrap these with
// %w so callers can classify failures with errors.Is while still seeing the
// concrete detail in the message.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrPurchaseLocked         = errors.New("purchase locked")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrConflictRetryExhausted = errors.New("transaction conflict retries exhausted")
)

// ValidationErrorf reports malformed or out-of-range input. Raised before any
// transaction is opened, never retried.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundErrorf reports a missing product, purchase, sale or lot group.
func NotFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// InsufficientStockError is returned when an operation would drive a product's
// stock or available lot quantity negative. It always names the product and
// the unsatisfied remainder.
type InsufficientStockError struct {
	ProductID int
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PurchaseLockedError is the reversal guard's rejection: units from the
// purchase's lots have already been attributed to recorded sales, so the
// purchase cannot leave the completed state or shrink its quantities.
type PurchaseLockedError struct {
	PurchaseID int
	ProductID  int
	Units      int64
}

func (e *PurchaseLockedError) Error() string {
	return fmt.Sprintf("purchase %d is locked: %d unit(s) of product %d already attributed to this purchase",
		e.PurchaseID, e.Units, e.ProductID)
}

func (e *PurchaseLockedError) Unwrap() error { return ErrPurchaseLocked }

// PermissionDeniedErrorf reports an actor attempting an operation outside
// their capability, e.g. a non-administrator editing a past-day sale.
func PermissionDeniedErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrPermissionDenied}, args...)...)
}
