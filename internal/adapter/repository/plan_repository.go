package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PlanRepository {
	return &planRepository{db: db, logger: logger}
}

func (r *planRepository) WithTx(tx *gorm.DB) domainRepo.PlanRepository {
	if tx == nil {
		return r
	}
	return &planRepository{db: tx, logger: r.logger}
}

func (r *planRepository) GetByID(ctx context.Context, id int64) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		First(&plan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *planRepository) GetByProviderPriceID(ctx context.Context, providerPriceID string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("provider_price_id = ? AND is_deleted = ?", providerPriceID, false).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrPlanNotFound
		}
		r.logger.Error("Failed to get plan by provider price id",
			zap.String("provider_price_id", providerPriceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_deleted = ?", true, false).
		Order("price ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}
