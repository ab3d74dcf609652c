package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/provider"
	"github.com/stitchlane/billing-service/internal/domain/repository"
)

// SubscriptionService exposes subscription state and renewal settings
// to API consumers.
type SubscriptionService struct {
	subscriptions  repository.SubscriptionRepository
	tenants        repository.TenantRepository
	paymentHistory repository.PaymentHistoryRepository
	provider       provider.Client
	logger         *zap.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	tenants repository.TenantRepository,
	paymentHistory repository.PaymentHistoryRepository,
	providerClient provider.Client,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions:  subscriptions,
		tenants:        tenants,
		paymentHistory: paymentHistory,
		provider:       providerClient,
		logger:         logger,
	}
}

// GetCurrent returns the tenant's current subscription with its plan.
func (s *SubscriptionService) GetCurrent(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	sub, err := s.subscriptions.GetCurrentForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domainErrors.ErrSubscriptionNotFound
	}
	return sub, nil
}

// GetPaymentHistory returns a page of the tenant's payment attempts,
// newest first.
func (s *SubscriptionService) GetPaymentHistory(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.PaymentHistoryEntry, int64, error) {
	return s.paymentHistory.ListByTenant(ctx, tenantID, limit, offset)
}

// SetAutoRenew flips the tenant's renewal preference and mirrors it to
// the provider as cancel-at-period-end on the current subscription.
func (s *SubscriptionService) SetAutoRenew(ctx context.Context, tenantID uuid.UUID, autoRenew bool) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	sub, err := s.subscriptions.GetCurrentForTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if sub == nil || sub.ProviderSubscriptionID == nil {
		return domainErrors.ErrSubscriptionNotFound
	}

	if err := s.provider.SetCancelAtPeriodEnd(ctx, *sub.ProviderSubscriptionID, !autoRenew); err != nil {
		return err
	}

	tenant.AutoRenew = autoRenew
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return err
	}

	sub.CancelAtPeriodEnd = !autoRenew
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Auto-renew updated",
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("auto_renew", autoRenew))
	return nil
}
