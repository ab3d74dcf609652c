package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

type tenantRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TenantRepository {
	return &tenantRepository{db: db, logger: logger}
}

func (r *tenantRepository) WithTx(tx *gorm.DB) domainRepo.TenantRepository {
	if tx == nil {
		return r
	}
	return &tenantRepository{db: tx, logger: r.logger}
}

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (r *tenantRepository) GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).
		Where("provider_customer_id = ?", providerCustomerID).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get tenant by provider customer id",
			zap.String("provider_customer_id", providerCustomerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		r.logger.Error("Failed to create tenant",
			zap.String("name", tenant.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *tenantRepository) Update(ctx context.Context, tenant *model.Tenant) error {
	if err := r.db.WithContext(ctx).Save(tenant).Error; err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (r *tenantRepository) AttachSubscription(ctx context.Context, tenantID uuid.UUID, subscriptionID int64, providerCustomerID string) error {
	updates := map[string]interface{}{
		"subscription_id": subscriptionID,
		"updated_at":      time.Now(),
	}
	if providerCustomerID != "" {
		updates["provider_customer_id"] = providerCustomerID
	}
	result := r.db.WithContext(ctx).
		Model(&model.Tenant{}).
		Where("id = ?", tenantID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to attach subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrTenantNotFound
	}
	return nil
}

func (r *tenantRepository) DetachSubscription(ctx context.Context, tenantID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&model.Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"subscription_id": nil,
			"updated_at":      time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to detach subscription: %w", err)
	}
	return nil
}

type userRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) domainRepo.UserRepository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) WithTx(tx *gorm.DB) domainRepo.UserRepository {
	if tx == nil {
		return r
	}
	return &userRepository{db: tx, logger: r.logger}
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetFirstByTenant(ctx context.Context, tenantID uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.logger.Error("Failed to create user",
			zap.String("email", user.Email),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

type pendingRegistrationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPendingRegistrationRepository creates a new pending registration repository.
func NewPendingRegistrationRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PendingRegistrationRepository {
	return &pendingRegistrationRepository{db: db, logger: logger}
}

func (r *pendingRegistrationRepository) WithTx(tx *gorm.DB) domainRepo.PendingRegistrationRepository {
	if tx == nil {
		return r
	}
	return &pendingRegistrationRepository{db: tx, logger: r.logger}
}

func (r *pendingRegistrationRepository) GetPending(ctx context.Context, id uuid.UUID) (*model.PendingRegistration, error) {
	var reg model.PendingRegistration
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.RegistrationStatusPending).
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get pending registration: %w", err)
	}
	return &reg, nil
}

func (r *pendingRegistrationRepository) Create(ctx context.Context, reg *model.PendingRegistration) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(reg).Error; err != nil {
		return fmt.Errorf("failed to create pending registration: %w", err)
	}
	return nil
}

func (r *pendingRegistrationRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.PendingRegistration{}).
		Where("id = ? AND status = ?", id, model.RegistrationStatusPending).
		Updates(map[string]interface{}{
			"status":       model.RegistrationStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete registration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrRegistrationNotFound
	}
	return nil
}
