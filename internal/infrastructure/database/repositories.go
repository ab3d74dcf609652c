package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/adapter/repository"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Plan                domainRepo.PlanRepository
	Tenant              domainRepo.TenantRepository
	User                domainRepo.UserRepository
	PendingRegistration domainRepo.PendingRegistrationRepository
	Subscription        domainRepo.SubscriptionRepository
	PaymentHistory      domainRepo.PaymentHistoryRepository
	CreditLedger        domainRepo.CreditLedgerRepository
	WebhookEvent        domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Plan:                repository.NewPlanRepository(db, logger),
		Tenant:              repository.NewTenantRepository(db, logger),
		User:                repository.NewUserRepository(db, logger),
		PendingRegistration: repository.NewPendingRegistrationRepository(db, logger),
		Subscription:        repository.NewSubscriptionRepository(db, logger),
		PaymentHistory:      repository.NewPaymentHistoryRepository(db, logger),
		CreditLedger:        repository.NewCreditLedgerRepository(db, logger),
		WebhookEvent:        repository.NewWebhookEventRepository(db, logger),
	}
}
