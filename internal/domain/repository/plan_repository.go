package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// PlanRepository reads the plan catalog.
type PlanRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) PlanRepository

	GetByID(ctx context.Context, id int64) (*model.Plan, error)
	GetByProviderPriceID(ctx context.Context, providerPriceID string) (*model.Plan, error)
	ListActive(ctx context.Context) ([]model.Plan, error)
}
