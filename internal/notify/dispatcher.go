// Package notify publishes billing notifications to interested
// consumers. Delivery is best effort: reconciliation never fails
// because a notification could not be sent.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentNotice describes a payment outcome for a tenant.
type PaymentNotice struct {
	TenantID  uuid.UUID       `json:"tenant_id"`
	PlanName  string          `json:"plan_name"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	InvoiceID string          `json:"invoice_id"`
	Reason    string          `json:"reason,omitempty"`
	FirstTime bool            `json:"first_time,omitempty"`
}

// CreditNotice describes a credit balance condition for a tenant.
type CreditNotice struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Credits   int       `json:"credits"`
	Threshold int       `json:"threshold"`
}

// TrialNotice warns that a tenant's trial is about to convert.
type TrialNotice struct {
	TenantID uuid.UUID `json:"tenant_id"`
	PlanName string    `json:"plan_name"`
}

// Dispatcher sends billing notifications. Implementations must not
// block reconciliation: failures are logged and swallowed.
type Dispatcher interface {
	PaymentSucceeded(ctx context.Context, notice PaymentNotice)
	PaymentFailed(ctx context.Context, notice PaymentNotice)
	LowCredits(ctx context.Context, notice CreditNotice)
	TrialWillEnd(ctx context.Context, notice TrialNotice)
}

// NopDispatcher discards all notifications. Used when no notification
// backend is configured and in tests.
type NopDispatcher struct{}

func (NopDispatcher) PaymentSucceeded(context.Context, PaymentNotice) {}
func (NopDispatcher) PaymentFailed(context.Context, PaymentNotice)   {}
func (NopDispatcher) LowCredits(context.Context, CreditNotice)       {}
func (NopDispatcher) TrialWillEnd(context.Context, TrialNotice)      {}
