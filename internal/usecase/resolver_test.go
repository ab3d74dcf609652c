package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/provider"
	"github.com/stitchlane/billing-service/internal/usecase"
)

type resolverMocks struct {
	subs     *MockSubscriptionRepository
	tenants  *MockTenantRepository
	users    *MockUserRepository
	plans    *MockPlanRepository
	provider *MockProviderClient
}

func newTestResolver() (*usecase.Resolver, *resolverMocks) {
	m := &resolverMocks{
		subs:     new(MockSubscriptionRepository),
		tenants:  new(MockTenantRepository),
		users:    new(MockUserRepository),
		plans:    new(MockPlanRepository),
		provider: new(MockProviderClient),
	}
	r := usecase.NewResolver(m.subs, m.tenants, m.users, m.plans, m.provider, zap.NewNop())
	return r, m
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("finds record by provider subscription id", func(t *testing.T) {
		resolver, m := newTestResolver()
		plan := testPlan(100)
		sub := testSubscription(plan, model.SubscriptionStatusActive)

		m.subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_123").Return(sub, nil)

		res, err := resolver.Resolve(ctx, "sub_123", "cus_123")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionFound, res.Outcome)
		assert.Equal(t, sub, res.Subscription)
		m.provider.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})

	t.Run("customer fallback backfills missing subscription ref", func(t *testing.T) {
		resolver, m := newTestResolver()
		plan := testPlan(100)
		sub := testSubscription(plan, model.SubscriptionStatusPending)
		sub.ProviderSubscriptionID = nil

		m.subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_123").Return(nil, nil)
		m.subs.On("GetLatestByProviderCustomerID", mock.Anything, "cus_123").Return(sub, nil)
		m.subs.On("Update", mock.Anything, sub).Return(nil)

		res, err := resolver.Resolve(ctx, "sub_123", "cus_123")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionFound, res.Outcome)
		if assert.NotNil(t, sub.ProviderSubscriptionID) {
			assert.Equal(t, "sub_123", *sub.ProviderSubscriptionID)
		}
		m.subs.AssertExpectations(t)
	})

	t.Run("reconstructs from provider via customer email", func(t *testing.T) {
		resolver, m := newTestResolver()
		plan := testPlan(100)
		tenant := &model.Tenant{ID: uuid.New(), Name: "Acme"}
		user := &model.User{ID: uuid.New(), TenantID: tenant.ID, Email: "owner@acme.test"}

		m.subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_777").Return(nil, nil)
		m.subs.On("GetLatestByProviderCustomerID", mock.Anything, "cus_777").Return(nil, nil)
		m.provider.On("GetSubscription", mock.Anything, "sub_777").Return(&provider.Subscription{
			ID:          "sub_777",
			CustomerID:  "cus_777",
			Status:      "trialing",
			PeriodStart: time.Now(),
			PeriodEnd:   time.Now().Add(14 * 24 * time.Hour),
			PriceID:     "price_pro",
		}, nil)
		m.tenants.On("GetByProviderCustomerID", mock.Anything, "cus_777").Return(nil, nil)
		m.provider.On("GetCustomer", mock.Anything, "cus_777").
			Return(&provider.Customer{ID: "cus_777", Email: "owner@acme.test"}, nil)
		m.users.On("GetByEmail", mock.Anything, "owner@acme.test").Return(user, nil)
		m.tenants.On("GetByID", mock.Anything, tenant.ID).Return(tenant, nil)
		m.tenants.On("Update", mock.Anything, tenant).Return(nil)
		m.plans.On("GetByProviderPriceID", mock.Anything, "price_pro").Return(plan, nil)
		m.subs.On("Create", mock.Anything, mock.MatchedBy(func(s *model.Subscription) bool {
			return s.TenantID == tenant.ID && s.Status == model.SubscriptionStatusTrialing
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*model.Subscription).ID = 9
		}).Return(nil)
		m.tenants.On("AttachSubscription", mock.Anything, tenant.ID, int64(9), "cus_777").Return(nil)

		res, err := resolver.Resolve(ctx, "sub_777", "cus_777")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionReconstructed, res.Outcome)
		assert.Equal(t, plan, res.Subscription.Plan)
		assert.Equal(t, "cus_777", tenant.ProviderCustomerID)
		m.tenants.AssertExpectations(t)
		m.subs.AssertExpectations(t)
	})

	t.Run("unresolved when no tenant matches the customer", func(t *testing.T) {
		resolver, m := newTestResolver()

		m.subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_404").Return(nil, nil)
		m.subs.On("GetLatestByProviderCustomerID", mock.Anything, "cus_404").Return(nil, nil)
		m.provider.On("GetSubscription", mock.Anything, "sub_404").Return(&provider.Subscription{
			ID:         "sub_404",
			CustomerID: "cus_404",
			Status:     "active",
			PriceID:    "price_pro",
		}, nil)
		m.tenants.On("GetByProviderCustomerID", mock.Anything, "cus_404").Return(nil, nil)
		m.provider.On("GetCustomer", mock.Anything, "cus_404").
			Return(&provider.Customer{ID: "cus_404", Email: "nobody@nowhere.test"}, nil)
		m.users.On("GetByEmail", mock.Anything, "nobody@nowhere.test").Return(nil, nil)

		res, err := resolver.Resolve(ctx, "sub_404", "cus_404")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionUnresolved, res.Outcome)
		assert.Nil(t, res.Subscription)
		m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unresolved when provider price has no local plan", func(t *testing.T) {
		resolver, m := newTestResolver()
		tenant := &model.Tenant{ID: uuid.New(), ProviderCustomerID: "cus_1"}

		m.subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_1").Return(nil, nil)
		m.subs.On("GetLatestByProviderCustomerID", mock.Anything, "cus_1").Return(nil, nil)
		m.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&provider.Subscription{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     "active",
			PriceID:    "price_unknown",
		}, nil)
		m.tenants.On("GetByProviderCustomerID", mock.Anything, "cus_1").Return(tenant, nil)
		m.plans.On("GetByProviderPriceID", mock.Anything, "price_unknown").
			Return(nil, domainErrors.ErrPlanNotFound)

		res, err := resolver.Resolve(ctx, "sub_1", "cus_1")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionUnresolved, res.Outcome)
		m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unresolved when event carries no subscription ref", func(t *testing.T) {
		resolver, m := newTestResolver()

		m.subs.On("GetLatestByProviderCustomerID", mock.Anything, "cus_1").Return(nil, nil)

		res, err := resolver.Resolve(ctx, "", "cus_1")

		assert.NoError(t, err)
		assert.Equal(t, usecase.ResolutionUnresolved, res.Outcome)
		m.provider.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})
}
