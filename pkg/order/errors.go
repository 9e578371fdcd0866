package order

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidLine       = errors.New("invalid order line")
	ErrInvalidPayment    = errors.New("invalid payment")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("operation not permitted for this user")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("order store error")

	// ErrStatusConflict is returned by a Repository when a conditional status
	// update finds a status other than the expected one.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
