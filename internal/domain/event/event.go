// Package event defines the typed billing events the reconciler consumes.
// Provider payloads are parsed and validated once, at the webhook boundary,
// so every handler receives an event-specific shape instead of branching
// over an untyped blob.
package event

import (
	"errors"
	"time"
)

// Type identifies an event class.
type Type string

const (
	TypeCheckoutCompleted    Type = "checkout.session.completed"
	TypeSubscriptionUpdated  Type = "customer.subscription.updated"
	TypeSubscriptionDeleted  Type = "customer.subscription.deleted"
	TypeInvoicePaid          Type = "invoice.paid"
	TypeInvoicePaymentFailed Type = "invoice.payment_failed"
	TypeTrialWillEnd         Type = "customer.subscription.trial_will_end"
)

var (
	// ErrMalformedPayload indicates a payload that verified but is missing
	// fields the event class requires. Such events are acknowledged without
	// processing so the provider does not retry undeliverable data.
	ErrMalformedPayload = errors.New("malformed event payload")

	// ErrUnhandledEventType indicates an event class this service does not
	// consume. Acknowledged and ignored.
	ErrUnhandledEventType = errors.New("unhandled event type")
)

// Event is one parsed provider event.
type Event interface {
	Kind() Type
	EventID() string
}

// Meta carries the fields common to every event.
type Meta struct {
	ID        string
	CreatedAt time.Time
}

// EventID returns the provider's unique event id.
func (m Meta) EventID() string { return m.ID }

// CheckoutCompleted finalizes an onboarding checkout tied to a pending
// registration.
type CheckoutCompleted struct {
	Meta
	SessionID      string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
	RegistrationID string
	PlanID         int64
}

// Kind implements Event.
func (CheckoutCompleted) Kind() Type { return TypeCheckoutCompleted }

// SubscriptionUpdated syncs status, period bounds and cancellation flags.
// It covers both customer.subscription.created and .updated deliveries,
// which carry the same object.
type SubscriptionUpdated struct {
	Meta
	SubscriptionID    string
	CustomerID        string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	CancelAt          *time.Time
}

// Kind implements Event.
func (SubscriptionUpdated) Kind() Type { return TypeSubscriptionUpdated }

// SubscriptionDeleted marks the subscription canceled.
type SubscriptionDeleted struct {
	Meta
	SubscriptionID string
	CustomerID     string
}

// Kind implements Event.
func (SubscriptionDeleted) Kind() Type { return TypeSubscriptionDeleted }

// InvoicePaid records a successful payment attempt and may grant credits.
type InvoicePaid struct {
	Meta
	InvoiceID        string
	SubscriptionID   string
	CustomerID       string
	PaymentIntentID  string
	AmountPaid       int64
	Currency         string
	BillingReason    string
	InvoicePDFURL    string
	HostedInvoiceURL string

	// ProrationPriceIDs are the provider price refs on proration lines,
	// used to recover the previous plan on an upgrade invoice.
	ProrationPriceIDs []string
}

// Kind implements Event.
func (InvoicePaid) Kind() Type { return TypeInvoicePaid }

// InvoicePaymentFailed records a failed payment attempt.
type InvoicePaymentFailed struct {
	Meta
	InvoiceID       string
	SubscriptionID  string
	CustomerID      string
	PaymentIntentID string
	AmountDue       int64
	Currency        string
	FailureMessage  string
}

// Kind implements Event.
func (InvoicePaymentFailed) Kind() Type { return TypeInvoicePaymentFailed }

// TrialWillEnd is a reminder dispatched shortly before a trial converts.
type TrialWillEnd struct {
	Meta
	SubscriptionID string
	CustomerID     string
	TrialEnd       time.Time
}

// Kind implements Event.
func (TrialWillEnd) Kind() Type { return TypeTrialWillEnd }

// Billing reasons the decision logic distinguishes. Values follow the
// provider's invoice billing_reason taxonomy.
const (
	BillingReasonSubscriptionCreate = "subscription_create"
	BillingReasonSubscriptionCycle  = "subscription_cycle"
	BillingReasonSubscriptionUpdate = "subscription_update"
)
