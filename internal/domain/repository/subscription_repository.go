package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// SubscriptionRepository persists subscription records. Lookup methods
// return (nil, nil) when no row matches so callers can distinguish
// absence from infrastructure failure.
type SubscriptionRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) SubscriptionRepository

	GetByID(ctx context.Context, id int64) (*model.Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error)

	// GetLatestByProviderCustomerID returns the most recently created
	// subscription for a provider customer, regardless of status.
	GetLatestByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error)

	// GetPendingByProviderCustomerID returns the newest pending
	// subscription for a customer, used when the provider confirms a
	// subscription whose id we have not stored yet.
	GetPendingByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error)

	GetCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error)

	Create(ctx context.Context, sub *model.Subscription) error
	Update(ctx context.Context, sub *model.Subscription) error
}
