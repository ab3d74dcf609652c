package errors

import "fmt"

// InsufficientCreditsError is returned when a deduction would take the
// balance below zero.
type InsufficientCreditsError struct {
	Requested int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: requested %d, available %d", e.Requested, e.Available)
}

// NewInsufficientCreditsError creates a new InsufficientCreditsError.
func NewInsufficientCreditsError(requested, available int) *InsufficientCreditsError {
	return &InsufficientCreditsError{
		Requested: requested,
		Available: available,
	}
}

// InvalidGrantError is returned when a credit grant is requested with a
// non-positive amount. This signals a caller bug, not a user-facing error.
type InvalidGrantError struct {
	Amount int
}

func (e *InvalidGrantError) Error() string {
	return fmt.Sprintf("credit grant amount must be positive, got %d", e.Amount)
}
