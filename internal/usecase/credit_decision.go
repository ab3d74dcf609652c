package usecase

import (
	"github.com/stitchlane/billing-service/internal/domain/event"
	"github.com/stitchlane/billing-service/internal/domain/model"
)

// PaymentFacts are the stored facts a paid invoice is judged against.
// The reconciler gathers them from the database before recording the
// payment; the decision itself is a pure function of this struct.
type PaymentFacts struct {
	// PaidCount is the number of paid entries recorded for the
	// subscription before this invoice.
	PaidCount int64

	// CreditsGranted is the subscription's cycle-grant flag.
	CreditsGranted bool

	// PreviousStatus is the subscription status before this invoice was
	// applied.
	PreviousStatus model.SubscriptionStatus

	// FailedSameInvoice reports a recorded failed attempt for the same
	// provider invoice.
	FailedSameInvoice bool

	// GrantedThisPeriod reports a billing-cycle grant already recorded in
	// the current period.
	GrantedThisPeriod bool

	// BillingReason is the provider's billing_reason for the invoice.
	BillingReason string

	// UpgradeDelta is the credit difference between the new and previous
	// plan when the invoice carries proration lines, zero otherwise.
	UpgradeDelta int
}

// CreditDecision is the outcome of judging a paid invoice.
type CreditDecision struct {
	Grant   bool
	Credits int
	Reason  model.CreditReason
}

// NoGrant is the decision to leave the ledger untouched.
var NoGrant = CreditDecision{}

// DecideCreditAction maps a paid invoice to at most one credit grant.
// Branch order matters: the first matching rule wins, so a first payment
// is never double-counted as a renewal and a recovered failure is never
// granted twice in one period.
func DecideCreditAction(planCredits int, facts PaymentFacts) CreditDecision {
	switch {
	case facts.PaidCount == 0 && !facts.CreditsGranted:
		return CreditDecision{Grant: true, Credits: planCredits, Reason: model.CreditReasonNewSubscription}

	case facts.FailedSameInvoice &&
		facts.PreviousStatus == model.SubscriptionStatusPastDue &&
		!facts.GrantedThisPeriod:
		return CreditDecision{Grant: true, Credits: planCredits, Reason: model.CreditReasonRetryAfterFailure}

	// A cycle invoice only counts as a renewal after a prior successful
	// payment; the first invoice after a trial conversion already had its
	// grant.
	case facts.BillingReason == event.BillingReasonSubscriptionCycle && facts.PaidCount > 0:
		return CreditDecision{Grant: true, Credits: planCredits, Reason: model.CreditReasonRenewal}

	case facts.BillingReason == event.BillingReasonSubscriptionUpdate && facts.UpgradeDelta > 0:
		return CreditDecision{Grant: true, Credits: facts.UpgradeDelta, Reason: model.CreditReasonUpgrade}

	default:
		return NoGrant
	}
}
