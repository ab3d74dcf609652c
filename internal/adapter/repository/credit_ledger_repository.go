package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

type creditLedgerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCreditLedgerRepository creates a new credit ledger repository.
func NewCreditLedgerRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CreditLedgerRepository {
	return &creditLedgerRepository{db: db, logger: logger}
}

func (r *creditLedgerRepository) WithTx(tx *gorm.DB) domainRepo.CreditLedgerRepository {
	if tx == nil {
		return r
	}
	return &creditLedgerRepository{db: tx, logger: r.logger}
}

func (r *creditLedgerRepository) Get(ctx context.Context, tenantID uuid.UUID) (*model.TenantCreditLedger, error) {
	var ledger model.TenantCreditLedger
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("failed to get credit ledger: %w", err)
	}
	return &ledger, nil
}

func (r *creditLedgerRepository) Init(ctx context.Context, tenantID uuid.UUID, startCredits int) error {
	ledger := model.TenantCreditLedger{
		TenantID:     tenantID,
		Credits:      startCredits,
		StartCredits: startCredits,
		LastUpdated:  time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ledger).Error
	if err != nil {
		return fmt.Errorf("failed to init credit ledger: %w", err)
	}
	return nil
}

func (r *creditLedgerRepository) Grant(ctx context.Context, tenantID uuid.UUID, credits int, reason model.CreditReason) (*model.TenantCreditLedger, error) {
	if credits <= 0 {
		return nil, &domainErrors.InvalidGrantError{Amount: credits}
	}

	var result *model.TenantCreditLedger
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := lockOrCreateLedger(tx, tenantID)
		if err != nil {
			return err
		}

		newBalance := ledger.Credits + credits
		entry := model.CreditLedgerEntry{
			TenantID:     tenantID,
			CreditsAdded: credits,
			Reason:       reason,
			BalanceAfter: newBalance,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		ledger.Credits = newBalance
		if ledger.StartCredits == 0 {
			ledger.StartCredits = newBalance
		}
		ledger.LastUpdated = time.Now()
		ledger.LastUpdateReason = reason
		if err := tx.Save(ledger).Error; err != nil {
			return fmt.Errorf("failed to update ledger balance: %w", err)
		}

		result = ledger
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to grant credits",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("credits", credits),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("Credits granted",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("credits", credits),
		zap.Int("balance", result.Credits),
		zap.String("reason", string(reason)))
	return result, nil
}

func (r *creditLedgerRepository) Deduct(ctx context.Context, tenantID uuid.UUID, credits int) (*model.TenantCreditLedger, error) {
	if credits <= 0 {
		return nil, &domainErrors.InvalidGrantError{Amount: credits}
	}

	var result *model.TenantCreditLedger
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ledger model.TenantCreditLedger
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).
			First(&ledger).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErrors.ErrLedgerNotFound
			}
			return fmt.Errorf("failed to lock ledger: %w", err)
		}

		if ledger.Credits < credits {
			return domainErrors.NewInsufficientCreditsError(credits, ledger.Credits)
		}

		newBalance := ledger.Credits - credits
		entry := model.CreditLedgerEntry{
			TenantID:     tenantID,
			CreditsAdded: -credits,
			Reason:       model.CreditReasonUsage,
			BalanceAfter: newBalance,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		ledger.Credits = newBalance
		ledger.LastUpdated = time.Now()
		ledger.LastUpdateReason = model.CreditReasonUsage
		if err := tx.Save(&ledger).Error; err != nil {
			return fmt.Errorf("failed to update ledger balance: %w", err)
		}

		result = &ledger
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *creditLedgerRepository) Zero(ctx context.Context, tenantID uuid.UUID, reason model.CreditReason) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ledger model.TenantCreditLedger
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).
			First(&ledger).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Nothing to zero.
				return nil
			}
			return fmt.Errorf("failed to lock ledger: %w", err)
		}

		if ledger.Credits == 0 {
			return nil
		}

		entry := model.CreditLedgerEntry{
			TenantID:     tenantID,
			CreditsAdded: -ledger.Credits,
			Reason:       reason,
			BalanceAfter: 0,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		ledger.Credits = 0
		ledger.LastUpdated = time.Now()
		ledger.LastUpdateReason = reason
		if err := tx.Save(&ledger).Error; err != nil {
			return fmt.Errorf("failed to update ledger balance: %w", err)
		}
		return nil
	})
}

func (r *creditLedgerRepository) HasGrantSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Where("tenant_id = ? AND created_at >= ? AND reason IN ?", tenantID, since, model.GrantReasons).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check grants this period: %w", err)
	}
	return count > 0, nil
}

func (r *creditLedgerRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.CreditLedgerEntry, int64, error) {
	var entries []model.CreditLedgerEntry
	var total int64

	base := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Where("tenant_id = ?", tenantID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	err := base.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, total, nil
}

func lockOrCreateLedger(tx *gorm.DB, tenantID uuid.UUID) (*model.TenantCreditLedger, error) {
	var ledger model.TenantCreditLedger
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		FirstOrCreate(&ledger, model.TenantCreditLedger{
			TenantID:    tenantID,
			LastUpdated: time.Now(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger: %w", err)
	}
	return &ledger, nil
}
