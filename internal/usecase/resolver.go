package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/provider"
	"github.com/stitchlane/billing-service/internal/domain/repository"
)

// ResolutionOutcome says how (or whether) a subscription record was
// located for an incoming event.
type ResolutionOutcome int

const (
	// ResolutionFound means an existing record matched a lookup key.
	ResolutionFound ResolutionOutcome = iota

	// ResolutionReconstructed means no record existed and one was rebuilt
	// from the provider's view.
	ResolutionReconstructed

	// ResolutionUnresolved means no record could be located or rebuilt.
	// The event is acknowledged and skipped, not retried.
	ResolutionUnresolved
)

// Resolution is the result of locating the subscription an event refers to.
type Resolution struct {
	Outcome      ResolutionOutcome
	Subscription *model.Subscription

	// Reason explains an unresolved outcome for the audit log.
	Reason string
}

// Resolver locates the local subscription record for a provider event,
// repairing records that webhook ordering left incomplete. Events can
// arrive before checkout handling stored the provider subscription ref,
// or for subscriptions created while this service was down.
type Resolver struct {
	subscriptions repository.SubscriptionRepository
	tenants       repository.TenantRepository
	users         repository.UserRepository
	plans         repository.PlanRepository
	provider      provider.Client
	logger        *zap.Logger
}

// NewResolver creates a new subscription resolver.
func NewResolver(
	subscriptions repository.SubscriptionRepository,
	tenants repository.TenantRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	providerClient provider.Client,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		subscriptions: subscriptions,
		tenants:       tenants,
		users:         users,
		plans:         plans,
		provider:      providerClient,
		logger:        logger,
	}
}

// Lookup finds the subscription for the given provider refs using only
// stored records: by provider subscription id, then latest by provider
// customer id (backfilling the subscription ref). An unresolved outcome
// is a value, not an error; errors are reserved for infrastructure
// failures that warrant a retry.
func (r *Resolver) Lookup(ctx context.Context, providerSubscriptionID, providerCustomerID string) (Resolution, error) {
	if providerSubscriptionID != "" {
		sub, err := r.subscriptions.GetByProviderSubscriptionID(ctx, providerSubscriptionID)
		if err != nil {
			return Resolution{}, err
		}
		if sub != nil {
			return Resolution{Outcome: ResolutionFound, Subscription: sub}, nil
		}
	}

	if providerCustomerID != "" {
		sub, err := r.subscriptions.GetLatestByProviderCustomerID(ctx, providerCustomerID)
		if err != nil {
			return Resolution{}, err
		}
		if sub != nil {
			// Checkout handling may not have stored the subscription ref
			// yet. Backfill it so the next event matches directly.
			if sub.ProviderSubscriptionID == nil && providerSubscriptionID != "" {
				sub.ProviderSubscriptionID = &providerSubscriptionID
				if err := r.subscriptions.Update(ctx, sub); err != nil {
					return Resolution{}, err
				}
				r.logger.Info("Backfilled provider subscription ref",
					zap.Int64("subscription_id", sub.ID),
					zap.String("provider_subscription_id", providerSubscriptionID))
			}
			return Resolution{Outcome: ResolutionFound, Subscription: sub}, nil
		}
	}

	return Resolution{Outcome: ResolutionUnresolved, Reason: "no matching subscription record"}, nil
}

// Resolve is Lookup followed by reconstruction from the provider API
// when no stored record matches. Record repair is reserved for invoice
// events; subscription lifecycle events use Lookup directly.
func (r *Resolver) Resolve(ctx context.Context, providerSubscriptionID, providerCustomerID string) (Resolution, error) {
	res, err := r.Lookup(ctx, providerSubscriptionID, providerCustomerID)
	if err != nil || res.Outcome != ResolutionUnresolved {
		return res, err
	}

	if providerSubscriptionID == "" {
		return Resolution{Outcome: ResolutionUnresolved, Reason: "no subscription ref on event"}, nil
	}

	return r.reconstruct(ctx, providerSubscriptionID)
}

// reconstruct rebuilds a missing subscription record from the provider's
// view. The tenant is found by its stored customer ref, or failing that
// by the customer's email via the user table.
func (r *Resolver) reconstruct(ctx context.Context, providerSubscriptionID string) (Resolution, error) {
	provSub, err := r.provider.GetSubscription(ctx, providerSubscriptionID)
	if err != nil {
		return Resolution{}, fmt.Errorf("provider subscription lookup: %w", err)
	}

	tenant, err := r.tenants.GetByProviderCustomerID(ctx, provSub.CustomerID)
	if err != nil {
		return Resolution{}, err
	}
	if tenant == nil {
		tenant, err = r.tenantByCustomerEmail(ctx, provSub.CustomerID)
		if err != nil {
			return Resolution{}, err
		}
	}
	if tenant == nil {
		r.logger.Warn("Could not resolve tenant for provider subscription",
			zap.String("provider_subscription_id", providerSubscriptionID),
			zap.String("provider_customer_id", provSub.CustomerID))
		return Resolution{Outcome: ResolutionUnresolved, Reason: "no tenant for provider customer"}, nil
	}

	plan, err := r.plans.GetByProviderPriceID(ctx, provSub.PriceID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPlanNotFound) {
			return Resolution{Outcome: ResolutionUnresolved, Reason: "no plan for provider price " + provSub.PriceID}, nil
		}
		return Resolution{}, err
	}

	sub := &model.Subscription{
		TenantID:               tenant.ID,
		PlanID:                 plan.ID,
		ProviderCustomerID:     provSub.CustomerID,
		ProviderSubscriptionID: &provSub.ID,
		Status:                 mapProviderStatus(provSub.Status),
		CurrentPeriodStart:     provSub.PeriodStart,
		CurrentPeriodEnd:       provSub.PeriodEnd,
		CancelAtPeriodEnd:      provSub.CancelAtPeriodEnd,
	}
	if err := r.subscriptions.Create(ctx, sub); err != nil {
		return Resolution{}, err
	}
	if err := r.tenants.AttachSubscription(ctx, tenant.ID, sub.ID, provSub.CustomerID); err != nil {
		return Resolution{}, err
	}
	sub.Plan = plan

	r.logger.Info("Reconstructed subscription from provider",
		zap.Int64("subscription_id", sub.ID),
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("provider_subscription_id", provSub.ID),
		zap.String("plan", plan.Name))

	return Resolution{Outcome: ResolutionReconstructed, Subscription: sub}, nil
}

func (r *Resolver) tenantByCustomerEmail(ctx context.Context, providerCustomerID string) (*model.Tenant, error) {
	cust, err := r.provider.GetCustomer(ctx, providerCustomerID)
	if err != nil {
		return nil, fmt.Errorf("provider customer lookup: %w", err)
	}
	if cust.Email == "" {
		return nil, nil
	}

	user, err := r.users.GetByEmail(ctx, cust.Email)
	if err != nil || user == nil {
		return nil, err
	}

	tenant, err := r.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTenantNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Record the customer ref so future lookups hit directly.
	if tenant.ProviderCustomerID == "" {
		tenant.ProviderCustomerID = providerCustomerID
		if err := r.tenants.Update(ctx, tenant); err != nil {
			return nil, err
		}
	}
	return tenant, nil
}

// mapProviderStatus maps the provider's subscription status taxonomy
// onto the local one. Unknown statuses are treated as pending.
func mapProviderStatus(status string) model.SubscriptionStatus {
	switch status {
	case "active":
		return model.SubscriptionStatusActive
	case "trialing":
		return model.SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return model.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return model.SubscriptionStatusCanceled
	default:
		return model.SubscriptionStatusPending
	}
}
