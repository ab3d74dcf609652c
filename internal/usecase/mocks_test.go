package usecase_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/provider"
	"github.com/stitchlane/billing-service/internal/domain/repository"
	"github.com/stitchlane/billing-service/internal/notify"
)

// fakeTransactor runs the function directly; repositories receive a nil
// tx and WithTx(nil) returns the repository unchanged.
type fakeTransactor struct{}

func (fakeTransactor) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) WithTx(tx *gorm.DB) repository.SubscriptionRepository {
	return m
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetLatestByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetPendingByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

// MockPaymentHistoryRepository is a mock implementation of PaymentHistoryRepository
type MockPaymentHistoryRepository struct {
	mock.Mock
}

func (m *MockPaymentHistoryRepository) WithTx(tx *gorm.DB) repository.PaymentHistoryRepository {
	return m
}

func (m *MockPaymentHistoryRepository) Create(ctx context.Context, entry *model.PaymentHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPaymentHistoryRepository) CountPaid(ctx context.Context, subscriptionID int64) (int64, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentHistoryRepository) HasPaidEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error) {
	args := m.Called(ctx, subscriptionID, providerInvoiceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentHistoryRepository) HasFailedEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error) {
	args := m.Called(ctx, subscriptionID, providerInvoiceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentHistoryRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.PaymentHistoryEntry, int64, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]model.PaymentHistoryEntry), args.Get(1).(int64), args.Error(2)
}

// MockCreditLedgerRepository is a mock implementation of CreditLedgerRepository
type MockCreditLedgerRepository struct {
	mock.Mock
}

func (m *MockCreditLedgerRepository) WithTx(tx *gorm.DB) repository.CreditLedgerRepository {
	return m
}

func (m *MockCreditLedgerRepository) Get(ctx context.Context, tenantID uuid.UUID) (*model.TenantCreditLedger, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantCreditLedger), args.Error(1)
}

func (m *MockCreditLedgerRepository) Init(ctx context.Context, tenantID uuid.UUID, startCredits int) error {
	args := m.Called(ctx, tenantID, startCredits)
	return args.Error(0)
}

func (m *MockCreditLedgerRepository) Grant(ctx context.Context, tenantID uuid.UUID, credits int, reason model.CreditReason) (*model.TenantCreditLedger, error) {
	args := m.Called(ctx, tenantID, credits, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantCreditLedger), args.Error(1)
}

func (m *MockCreditLedgerRepository) Deduct(ctx context.Context, tenantID uuid.UUID, credits int) (*model.TenantCreditLedger, error) {
	args := m.Called(ctx, tenantID, credits)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantCreditLedger), args.Error(1)
}

func (m *MockCreditLedgerRepository) Zero(ctx context.Context, tenantID uuid.UUID, reason model.CreditReason) error {
	args := m.Called(ctx, tenantID, reason)
	return args.Error(0)
}

func (m *MockCreditLedgerRepository) HasGrantSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditLedgerRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.CreditLedgerEntry, int64, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]model.CreditLedgerEntry), args.Get(1).(int64), args.Error(2)
}

// MockPlanRepository is a mock implementation of PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) WithTx(tx *gorm.DB) repository.PlanRepository {
	return m
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id int64) (*model.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

func (m *MockPlanRepository) GetByProviderPriceID(ctx context.Context, providerPriceID string) (*model.Plan, error) {
	args := m.Called(ctx, providerPriceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

func (m *MockPlanRepository) ListActive(ctx context.Context) ([]model.Plan, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Plan), args.Error(1)
}

// MockTenantRepository is a mock implementation of TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) WithTx(tx *gorm.DB) repository.TenantRepository {
	return m
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Tenant, error) {
	args := m.Called(ctx, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *model.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) AttachSubscription(ctx context.Context, tenantID uuid.UUID, subscriptionID int64, providerCustomerID string) error {
	args := m.Called(ctx, tenantID, subscriptionID, providerCustomerID)
	return args.Error(0)
}

func (m *MockTenantRepository) DetachSubscription(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) WithTx(tx *gorm.DB) repository.UserRepository {
	return m
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetFirstByTenant(ctx context.Context, tenantID uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockPendingRegistrationRepository is a mock implementation of PendingRegistrationRepository
type MockPendingRegistrationRepository struct {
	mock.Mock
}

func (m *MockPendingRegistrationRepository) WithTx(tx *gorm.DB) repository.PendingRegistrationRepository {
	return m
}

func (m *MockPendingRegistrationRepository) GetPending(ctx context.Context, id uuid.UUID) (*model.PendingRegistration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PendingRegistration), args.Error(1)
}

func (m *MockPendingRegistrationRepository) Create(ctx context.Context, reg *model.PendingRegistration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *MockPendingRegistrationRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProviderClient is a mock implementation of provider.Client
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) GetSubscription(ctx context.Context, id string) (*provider.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Subscription), args.Error(1)
}

func (m *MockProviderClient) GetCustomer(ctx context.Context, id string) (*provider.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Customer), args.Error(1)
}

func (m *MockProviderClient) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) error {
	args := m.Called(ctx, id, cancel)
	return args.Error(0)
}

// recordingDispatcher captures dispatched notifications for assertions.
type recordingDispatcher struct {
	payments  []notify.PaymentNotice
	failures  []notify.PaymentNotice
	lowCredit []notify.CreditNotice
	trials    []notify.TrialNotice
}

func (d *recordingDispatcher) PaymentSucceeded(_ context.Context, n notify.PaymentNotice) {
	d.payments = append(d.payments, n)
}

func (d *recordingDispatcher) PaymentFailed(_ context.Context, n notify.PaymentNotice) {
	d.failures = append(d.failures, n)
}

func (d *recordingDispatcher) LowCredits(_ context.Context, n notify.CreditNotice) {
	d.lowCredit = append(d.lowCredit, n)
}

func (d *recordingDispatcher) TrialWillEnd(_ context.Context, n notify.TrialNotice) {
	d.trials = append(d.trials, n)
}
