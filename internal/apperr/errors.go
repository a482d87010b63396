// Package apperr holds the error taxonomy shared by the storefront services.
//
// Services wrap these sentinels with fmt.Errorf("%w: ...") to attach a message
// that is safe to show to the caller. Anything that does not wrap one of them is
// treated as an internal error by the transport layer.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrConflict          = errors.New("conflict")
	ErrProvider          = errors.New("payment provider error")
	ErrInvalidInput      = errors.New("invalid input")
)

// IsClientError reports whether err belongs to the validation class: detected
// before any mutation and safe to describe to the caller.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrInsufficientStock,
		ErrEmptyCart,
		ErrNotAuthorized,
		ErrUnauthenticated,
		ErrConflict,
		ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
