package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

type paymentHistoryRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentHistoryRepository creates a new payment history repository.
func NewPaymentHistoryRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentHistoryRepository {
	return &paymentHistoryRepository{db: db, logger: logger}
}

func (r *paymentHistoryRepository) WithTx(tx *gorm.DB) domainRepo.PaymentHistoryRepository {
	if tx == nil {
		return r
	}
	return &paymentHistoryRepository{db: tx, logger: r.logger}
}

func (r *paymentHistoryRepository) Create(ctx context.Context, entry *model.PaymentHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Error("Failed to record payment history entry",
			zap.Int64("subscription_id", entry.SubscriptionID),
			zap.String("provider_invoice_id", entry.ProviderInvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to record payment history: %w", err)
	}
	return nil
}

func (r *paymentHistoryRepository) CountPaid(ctx context.Context, subscriptionID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PaymentHistoryEntry{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, model.PaymentStatusPaid).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count paid entries: %w", err)
	}
	return count, nil
}

func (r *paymentHistoryRepository) HasPaidEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PaymentHistoryEntry{}).
		Where("subscription_id = ? AND provider_invoice_id = ? AND status = ?",
			subscriptionID, providerInvoiceID, model.PaymentStatusPaid).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check paid entry: %w", err)
	}
	return count > 0, nil
}

func (r *paymentHistoryRepository) HasFailedEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PaymentHistoryEntry{}).
		Where("subscription_id = ? AND provider_invoice_id = ? AND status = ?",
			subscriptionID, providerInvoiceID, model.PaymentStatusFailed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check failed entry: %w", err)
	}
	return count > 0, nil
}

func (r *paymentHistoryRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.PaymentHistoryEntry, int64, error) {
	var entries []model.PaymentHistoryEntry
	var total int64

	base := r.db.WithContext(ctx).
		Model(&model.PaymentHistoryEntry{}).
		Where("tenant_id = ?", tenantID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payment history: %w", err)
	}

	err := base.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment history: %w", err)
	}
	return entries, total, nil
}
