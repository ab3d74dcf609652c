package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/event"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
)

// OnboardingService turns completed checkouts into tenants. Signup
// details are parked as a pending registration until the provider
// confirms payment setup, then finalized into tenant, user, subscription
// and an empty credit ledger in one transaction.
type OnboardingService struct {
	tx            Transactor
	registrations repository.PendingRegistrationRepository
	tenants       repository.TenantRepository
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	plans         repository.PlanRepository
	creditLedger  repository.CreditLedgerRepository
	logger        *zap.Logger
}

// NewOnboardingService creates a new onboarding service.
func NewOnboardingService(
	tx Transactor,
	registrations repository.PendingRegistrationRepository,
	tenants repository.TenantRepository,
	users repository.UserRepository,
	subscriptions repository.SubscriptionRepository,
	plans repository.PlanRepository,
	creditLedger repository.CreditLedgerRepository,
	logger *zap.Logger,
) *OnboardingService {
	return &OnboardingService{
		tx:            tx,
		registrations: registrations,
		tenants:       tenants,
		users:         users,
		subscriptions: subscriptions,
		plans:         plans,
		creditLedger:  creditLedger,
		logger:        logger,
	}
}

// RegisterInput captures a signup awaiting checkout.
type RegisterInput struct {
	Email      string
	TenantName string
	UserName   string
	PlanID     int64
}

// Register parks signup details as a pending registration. The returned
// id is attached to the checkout session metadata so the completion
// webhook can find it.
func (s *OnboardingService) Register(ctx context.Context, in RegisterInput) (*model.PendingRegistration, error) {
	if _, err := s.plans.GetByID(ctx, in.PlanID); err != nil {
		return nil, err
	}

	reg := &model.PendingRegistration{
		Email:      in.Email,
		TenantName: in.TenantName,
		UserName:   in.UserName,
		PlanID:     in.PlanID,
		Status:     model.RegistrationStatusPending,
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, err
	}

	s.logger.Info("Registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("email", reg.Email),
		zap.Int64("plan_id", reg.PlanID))
	return reg, nil
}

// Finalize consumes a checkout-completed event. Replays are absorbed:
// once a registration is marked completed it can no longer be found, so
// a duplicate delivery is acknowledged without creating anything.
func (s *OnboardingService) Finalize(ctx context.Context, ev event.CheckoutCompleted) error {
	if ev.RegistrationID == "" {
		s.logger.Warn("Checkout completed without registration ref, skipping",
			zap.String("event_id", ev.ID),
			zap.String("session_id", ev.SessionID))
		return nil
	}
	regID, err := uuid.Parse(ev.RegistrationID)
	if err != nil {
		s.logger.Warn("Checkout completed with invalid registration ref, skipping",
			zap.String("event_id", ev.ID),
			zap.String("registration_id", ev.RegistrationID))
		return nil
	}

	reg, err := s.registrations.GetPending(ctx, regID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrRegistrationNotFound) {
			s.logger.Info("Registration already finalized or unknown, skipping",
				zap.String("registration_id", regID.String()))
			return nil
		}
		return err
	}

	planID := reg.PlanID
	if ev.PlanID != 0 {
		planID = ev.PlanID
	}
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		if errors.Is(err, domainErrors.ErrPlanNotFound) {
			s.logger.Error("Checkout references unknown plan, skipping",
				zap.String("registration_id", regID.String()),
				zap.Int64("plan_id", planID))
			return nil
		}
		return err
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		tenants := s.tenants.WithTx(tx)
		users := s.users.WithTx(tx)
		subs := s.subscriptions.WithTx(tx)
		ledger := s.creditLedger.WithTx(tx)
		regs := s.registrations.WithTx(tx)

		tenant := &model.Tenant{
			Name:               reg.TenantName,
			Email:              reg.Email,
			ProviderCustomerID: ev.CustomerID,
		}
		if err := tenants.Create(ctx, tenant); err != nil {
			return err
		}

		user := &model.User{
			TenantID: tenant.ID,
			Email:    reg.Email,
			Name:     reg.UserName,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}

		sub := &model.Subscription{
			TenantID:           tenant.ID,
			UserID:             &user.ID,
			PlanID:             planID,
			ProviderCustomerID: ev.CustomerID,
			Status:             model.SubscriptionStatusPending,
		}
		if ev.SubscriptionID != "" {
			sub.ProviderSubscriptionID = &ev.SubscriptionID
		}
		if err := subs.Create(ctx, sub); err != nil {
			return err
		}

		if err := tenants.AttachSubscription(ctx, tenant.ID, sub.ID, ev.CustomerID); err != nil {
			return err
		}

		// Credits arrive with the first paid invoice; the ledger starts
		// at zero so a balance row exists from day one.
		if err := ledger.Init(ctx, tenant.ID, 0); err != nil {
			return err
		}

		if err := regs.MarkCompleted(ctx, reg.ID); err != nil {
			return err
		}

		s.logger.Info("Onboarding finalized",
			zap.String("registration_id", reg.ID.String()),
			zap.String("tenant_id", tenant.ID.String()),
			zap.Int64("subscription_id", sub.ID))
		return nil
	})
	return err
}
