// Package provider defines the read-mostly payment-provider API surface
// the reconciler uses to repair partially-initialized records.
package provider

import (
	"context"
	"time"
)

// Subscription is the provider's view of a recurring-billing object,
// reduced to the fields record repair needs.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	PriceID           string
}

// Customer is the provider's view of a billing customer.
type Customer struct {
	ID    string
	Email string
}

// Client is the outbound payment-provider API. Implementations bound
// every call with a timeout so a slow upstream cannot hold a database
// transaction open indefinitely.
type Client interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) error
}
