package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// TenantRepository persists tenants and their current-subscription pointer.
type TenantRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) TenantRepository

	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Tenant, error)
	Create(ctx context.Context, tenant *model.Tenant) error
	Update(ctx context.Context, tenant *model.Tenant) error

	// AttachSubscription points the tenant at its current subscription and
	// records the provider customer ref when not yet known.
	AttachSubscription(ctx context.Context, tenantID uuid.UUID, subscriptionID int64, providerCustomerID string) error

	// DetachSubscription clears the current-subscription pointer while
	// leaving the subscription row and payment history intact.
	DetachSubscription(ctx context.Context, tenantID uuid.UUID) error
}

// UserRepository persists tenant users. Email lookup serves the webhook
// repair path.
type UserRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) UserRepository

	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetFirstByTenant(ctx context.Context, tenantID uuid.UUID) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// PendingRegistrationRepository stores signups awaiting checkout.
type PendingRegistrationRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) PendingRegistrationRepository

	GetPending(ctx context.Context, id uuid.UUID) (*model.PendingRegistration, error)
	Create(ctx context.Context, reg *model.PendingRegistration) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
}
