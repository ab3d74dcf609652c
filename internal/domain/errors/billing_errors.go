package errors

import "errors"

var (
	// ErrSubscriptionNotFound indicates that no subscription matched any
	// lookup key, even after the repair path.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrPlanNotFound indicates that no plan matched the given id or
	// provider price reference.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrTenantNotFound indicates that no tenant could be resolved for a
	// provider customer reference.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrRegistrationNotFound indicates that a checkout event referenced
	// an unknown or already-consumed pending registration.
	ErrRegistrationNotFound = errors.New("pending registration not found")

	// ErrLedgerNotFound indicates that the tenant has no credit ledger yet.
	ErrLedgerNotFound = errors.New("credit ledger not found")
)
