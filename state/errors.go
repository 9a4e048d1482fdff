package state

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before anything was attempted.
	ErrValidation     = errors.New("validation failed")
	ErrEmptyCart      = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInvalidPayment = fmt.Errorf("%w: unknown payment method", ErrValidation)

	// ErrWrite marks a store or media write that failed. Local state is
	// left as it was before the call.
	ErrWrite = errors.New("write failed")

	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("menu item not found")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWrite, op, err)
}
