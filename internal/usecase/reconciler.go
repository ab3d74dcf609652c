package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/event"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
	"github.com/stitchlane/billing-service/internal/notify"
)

// Reconciler drives local billing state toward what provider events
// report. Handlers are idempotent: replaying a delivered event leaves
// subscriptions, payment history and the credit ledger unchanged.
//
// A nil return means the event is settled, including events that were
// acknowledged and skipped because they could not be matched to local
// state. An error return means a transient failure and asks for a retry.
type Reconciler struct {
	tx             Transactor
	subscriptions  repository.SubscriptionRepository
	tenants        repository.TenantRepository
	plans          repository.PlanRepository
	paymentHistory repository.PaymentHistoryRepository
	creditLedger   repository.CreditLedgerRepository
	resolver       *Resolver
	onboarding     *OnboardingService
	dispatcher     notify.Dispatcher
	logger         *zap.Logger
}

// NewReconciler creates a new webhook reconciler.
func NewReconciler(
	tx Transactor,
	subscriptions repository.SubscriptionRepository,
	tenants repository.TenantRepository,
	plans repository.PlanRepository,
	paymentHistory repository.PaymentHistoryRepository,
	creditLedger repository.CreditLedgerRepository,
	resolver *Resolver,
	onboarding *OnboardingService,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		tx:             tx,
		subscriptions:  subscriptions,
		tenants:        tenants,
		plans:          plans,
		paymentHistory: paymentHistory,
		creditLedger:   creditLedger,
		resolver:       resolver,
		onboarding:     onboarding,
		dispatcher:     dispatcher,
		logger:         logger,
	}
}

// ProcessEvent dispatches a parsed event to its handler.
func (r *Reconciler) ProcessEvent(ctx context.Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.CheckoutCompleted:
		return r.onboarding.Finalize(ctx, e)
	case event.SubscriptionUpdated:
		return r.handleSubscriptionUpdated(ctx, e)
	case event.SubscriptionDeleted:
		return r.handleSubscriptionDeleted(ctx, e)
	case event.InvoicePaid:
		return r.handleInvoicePaid(ctx, e)
	case event.InvoicePaymentFailed:
		return r.handleInvoicePaymentFailed(ctx, e)
	case event.TrialWillEnd:
		return r.handleTrialWillEnd(ctx, e)
	default:
		return event.ErrUnhandledEventType
	}
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, ev event.SubscriptionUpdated) error {
	// Lifecycle events never repair missing records; only invoice events
	// justify a reconstruction round-trip to the provider.
	res, err := r.resolver.Lookup(ctx, ev.SubscriptionID, ev.CustomerID)
	if err != nil {
		return err
	}
	if res.Outcome == ResolutionUnresolved {
		r.logger.Warn("Skipping subscription update, no matching record",
			zap.String("event_id", ev.ID),
			zap.String("provider_subscription_id", ev.SubscriptionID),
			zap.String("reason", res.Reason))
		return nil
	}

	sub := res.Subscription
	prevStatus := sub.Status
	sub.Status = mapProviderStatus(ev.Status)
	if !ev.PeriodStart.IsZero() {
		sub.CurrentPeriodStart = ev.PeriodStart
	}
	if !ev.PeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = ev.PeriodEnd
	}
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	sub.CancelAt = ev.CancelAt

	if prevStatus == model.SubscriptionStatusTrialing &&
		sub.Status == model.SubscriptionStatusActive &&
		!sub.CreditsGranted {
		return r.grantTrialConversion(ctx, sub)
	}

	if err := r.subscriptions.Update(ctx, sub); err != nil {
		return err
	}

	r.logger.Info("Subscription synced",
		zap.Int64("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Bool("cancel_at_period_end", sub.CancelAtPeriodEnd))
	return nil
}

// grantTrialConversion activates a converted trial and grants the plan
// allotment once, with the status change and the grant in one
// transaction.
func (r *Reconciler) grantTrialConversion(ctx context.Context, sub *model.Subscription) error {
	plan, err := r.planFor(ctx, sub)
	if err != nil {
		return err
	}

	sub.CreditsGranted = true
	err = r.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := r.subscriptions.WithTx(tx).Update(ctx, sub); err != nil {
			return err
		}
		_, err := r.creditLedger.WithTx(tx).Grant(ctx, sub.TenantID, plan.Credits, model.CreditReasonTrialConverted)
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("Trial converted, credits granted",
		zap.Int64("subscription_id", sub.ID),
		zap.String("tenant_id", sub.TenantID.String()),
		zap.Int("credits", plan.Credits))
	return nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, ev event.SubscriptionDeleted) error {
	// No reconstruction here: rebuilding a record only to cancel it is
	// pointless, so plain lookups suffice.
	sub, err := r.subscriptions.GetByProviderSubscriptionID(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil && ev.CustomerID != "" {
		sub, err = r.subscriptions.GetLatestByProviderCustomerID(ctx, ev.CustomerID)
		if err != nil {
			return err
		}
	}
	if sub == nil {
		r.logger.Warn("Skipping subscription deletion, no matching record",
			zap.String("event_id", ev.ID),
			zap.String("provider_subscription_id", ev.SubscriptionID))
		return nil
	}
	if sub.Status == model.SubscriptionStatusCanceled {
		return nil
	}

	now := time.Now()
	return r.tx.Transaction(ctx, func(tx *gorm.DB) error {
		subs := r.subscriptions.WithTx(tx)
		tenants := r.tenants.WithTx(tx)
		ledger := r.creditLedger.WithTx(tx)

		sub.Status = model.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		if err := subs.Update(ctx, sub); err != nil {
			return err
		}

		// The tenant keeps its subscription row and payment history;
		// only the current-subscription pointer is cleared.
		if err := tenants.DetachSubscription(ctx, sub.TenantID); err != nil {
			return err
		}

		// Remaining credits expire with the subscription, recorded as an
		// auditable ledger entry rather than silently dropped.
		if err := ledger.Zero(ctx, sub.TenantID, model.CreditReasonCancellation); err != nil {
			return err
		}

		r.logger.Info("Subscription canceled",
			zap.Int64("subscription_id", sub.ID),
			zap.String("tenant_id", sub.TenantID.String()))
		return nil
	})
}

func (r *Reconciler) handleInvoicePaid(ctx context.Context, ev event.InvoicePaid) error {
	res, err := r.resolver.Resolve(ctx, ev.SubscriptionID, ev.CustomerID)
	if err != nil {
		return err
	}
	if res.Outcome == ResolutionUnresolved {
		r.logger.Warn("Skipping paid invoice, no matching subscription",
			zap.String("event_id", ev.ID),
			zap.String("invoice_id", ev.InvoiceID),
			zap.String("reason", res.Reason))
		return nil
	}

	sub := res.Subscription
	plan, err := r.planFor(ctx, sub)
	if err != nil {
		return err
	}

	// Replay guard: one paid entry per invoice per subscription.
	alreadyPaid, err := r.paymentHistory.HasPaidEntry(ctx, sub.ID, ev.InvoiceID)
	if err != nil {
		return err
	}
	if alreadyPaid {
		r.logger.Info("Invoice already recorded, skipping",
			zap.String("invoice_id", ev.InvoiceID),
			zap.Int64("subscription_id", sub.ID))
		return nil
	}

	facts, err := r.gatherPaymentFacts(ctx, sub, plan, ev)
	if err != nil {
		return err
	}
	decision := DecideCreditAction(plan.Credits, facts)

	now := time.Now()
	err = r.tx.Transaction(ctx, func(tx *gorm.DB) error {
		subs := r.subscriptions.WithTx(tx)
		history := r.paymentHistory.WithTx(tx)
		ledger := r.creditLedger.WithTx(tx)

		entry := &model.PaymentHistoryEntry{
			SubscriptionID:    sub.ID,
			TenantID:          sub.TenantID,
			ProviderInvoiceID: ev.InvoiceID,
			ProviderPaymentID: ev.PaymentIntentID,
			Status:            model.PaymentStatusPaid,
			AmountPaid:        decimal.New(ev.AmountPaid, -2),
			Currency:          ev.Currency,
			IsRetry:           facts.FailedSameInvoice,
			InvoicePDFURL:     ev.InvoicePDFURL,
			HostedInvoiceURL:  ev.HostedInvoiceURL,
			PaidAt:            &now,
		}
		if err := history.Create(ctx, entry); err != nil {
			return err
		}

		sub.Status = model.SubscriptionStatusActive
		if decision.Grant {
			sub.CreditsGranted = true
		}
		if err := subs.Update(ctx, sub); err != nil {
			return err
		}

		if decision.Grant {
			if _, err := ledger.Grant(ctx, sub.TenantID, decision.Credits, decision.Reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("Paid invoice reconciled",
		zap.String("invoice_id", ev.InvoiceID),
		zap.Int64("subscription_id", sub.ID),
		zap.Bool("granted", decision.Grant),
		zap.Int("credits", decision.Credits),
		zap.String("reason", string(decision.Reason)))

	r.dispatcher.PaymentSucceeded(ctx, notify.PaymentNotice{
		TenantID:  sub.TenantID,
		PlanName:  plan.Name,
		Amount:    decimal.New(ev.AmountPaid, -2),
		Currency:  ev.Currency,
		InvoiceID: ev.InvoiceID,
		Reason:    string(decision.Reason),
		FirstTime: facts.PaidCount == 0,
	})
	return nil
}

// gatherPaymentFacts collects the stored facts the credit decision
// depends on. Reads happen before the write transaction; the paid-entry
// replay guard keeps concurrent duplicates from double-granting.
func (r *Reconciler) gatherPaymentFacts(ctx context.Context, sub *model.Subscription, plan *model.Plan, ev event.InvoicePaid) (PaymentFacts, error) {
	facts := PaymentFacts{
		CreditsGranted: sub.CreditsGranted,
		PreviousStatus: sub.Status,
		BillingReason:  ev.BillingReason,
	}

	var err error
	facts.PaidCount, err = r.paymentHistory.CountPaid(ctx, sub.ID)
	if err != nil {
		return facts, err
	}

	facts.FailedSameInvoice, err = r.paymentHistory.HasFailedEntry(ctx, sub.ID, ev.InvoiceID)
	if err != nil {
		return facts, err
	}

	if facts.FailedSameInvoice && !sub.CurrentPeriodStart.IsZero() {
		facts.GrantedThisPeriod, err = r.creditLedger.HasGrantSince(ctx, sub.TenantID, sub.CurrentPeriodStart)
		if err != nil {
			return facts, err
		}
	}

	if ev.BillingReason == event.BillingReasonSubscriptionUpdate {
		facts.UpgradeDelta, err = r.upgradeDelta(ctx, plan, ev.ProrationPriceIDs)
		if err != nil {
			return facts, err
		}
	}
	return facts, nil
}

// upgradeDelta computes the credit difference between the current plan
// and the plan found on the invoice's proration lines. Zero when the
// previous plan cannot be determined or the change is not an upgrade.
func (r *Reconciler) upgradeDelta(ctx context.Context, current *model.Plan, prorationPriceIDs []string) (int, error) {
	for _, priceID := range prorationPriceIDs {
		if priceID == "" || priceID == current.ProviderPriceID {
			continue
		}
		prev, err := r.plans.GetByProviderPriceID(ctx, priceID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrPlanNotFound) {
				continue
			}
			return 0, err
		}
		if delta := current.Credits - prev.Credits; delta > 0 {
			return delta, nil
		}
	}
	return 0, nil
}

func (r *Reconciler) handleInvoicePaymentFailed(ctx context.Context, ev event.InvoicePaymentFailed) error {
	res, err := r.resolver.Resolve(ctx, ev.SubscriptionID, ev.CustomerID)
	if err != nil {
		return err
	}
	if res.Outcome == ResolutionUnresolved {
		r.logger.Warn("Skipping failed invoice, no matching subscription",
			zap.String("event_id", ev.ID),
			zap.String("invoice_id", ev.InvoiceID),
			zap.String("reason", res.Reason))
		return nil
	}

	sub := res.Subscription
	plan, err := r.planFor(ctx, sub)
	if err != nil {
		return err
	}

	alreadyFailed, err := r.paymentHistory.HasFailedEntry(ctx, sub.ID, ev.InvoiceID)
	if err != nil {
		return err
	}
	if alreadyFailed {
		return nil
	}

	now := time.Now()
	reason := ev.FailureMessage
	prevStatus := sub.Status
	err = r.tx.Transaction(ctx, func(tx *gorm.DB) error {
		subs := r.subscriptions.WithTx(tx)
		history := r.paymentHistory.WithTx(tx)

		entry := &model.PaymentHistoryEntry{
			SubscriptionID:    sub.ID,
			TenantID:          sub.TenantID,
			ProviderInvoiceID: ev.InvoiceID,
			ProviderPaymentID: ev.PaymentIntentID,
			Status:            model.PaymentStatusFailed,
			AmountDue:         decimal.New(ev.AmountDue, -2),
			Currency:          ev.Currency,
			FailureReason:     &reason,
			FailedAt:          &now,
		}
		if err := history.Create(ctx, entry); err != nil {
			return err
		}

		// Only a billable subscription transitions to past_due. A late
		// failed invoice for a canceled subscription is recorded without
		// resurrecting it, which would also collide with the tenant's
		// next subscription on the billable-uniqueness index.
		if prevStatus != model.SubscriptionStatusActive && prevStatus != model.SubscriptionStatusTrialing {
			return nil
		}
		sub.Status = model.SubscriptionStatusPastDue
		return subs.Update(ctx, sub)
	})
	if err != nil {
		return err
	}

	r.logger.Warn("Payment failed",
		zap.String("invoice_id", ev.InvoiceID),
		zap.Int64("subscription_id", sub.ID),
		zap.String("previous_status", string(prevStatus)),
		zap.String("failure_reason", reason))

	r.dispatcher.PaymentFailed(ctx, notify.PaymentNotice{
		TenantID:  sub.TenantID,
		PlanName:  plan.Name,
		Amount:    decimal.New(ev.AmountDue, -2),
		Currency:  ev.Currency,
		InvoiceID: ev.InvoiceID,
		Reason:    reason,
		FirstTime: prevStatus == model.SubscriptionStatusPending || prevStatus == model.SubscriptionStatusTrialing,
	})
	return nil
}

func (r *Reconciler) handleTrialWillEnd(ctx context.Context, ev event.TrialWillEnd) error {
	sub, err := r.subscriptions.GetByProviderSubscriptionID(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	plan, err := r.planFor(ctx, sub)
	if err != nil {
		return err
	}

	r.dispatcher.TrialWillEnd(ctx, notify.TrialNotice{
		TenantID: sub.TenantID,
		PlanName: plan.Name,
	})
	return nil
}

func (r *Reconciler) planFor(ctx context.Context, sub *model.Subscription) (*model.Plan, error) {
	if sub.Plan != nil {
		return sub.Plan, nil
	}
	plan, err := r.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan %d for subscription %d: %w", sub.PlanID, sub.ID, err)
	}
	sub.Plan = plan
	return plan, nil
}
