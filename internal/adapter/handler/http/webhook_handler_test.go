package http_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "github.com/stitchlane/billing-service/internal/adapter/handler/http"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
	"github.com/stitchlane/billing-service/internal/usecase"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header value for the payload,
// matching the provider's v1 signing scheme.
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type mockWebhookEventRepository struct {
	mock.Mock
}

func (m *mockWebhookEventRepository) SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error {
	args := m.Called(ctx, eventID, eventType, data)
	return args.Error(0)
}

func (m *mockWebhookEventRepository) GetEvent(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookEvent), args.Error(1)
}

func (m *mockWebhookEventRepository) MarkProcessing(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWebhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *mockWebhookEventRepository) MarkFailed(ctx context.Context, eventID string, processingErr error) error {
	args := m.Called(ctx, eventID, processingErr)
	return args.Error(0)
}

func (m *mockWebhookEventRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookEvent), args.Error(1)
}

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) WithTx(tx *gorm.DB) repository.SubscriptionRepository {
	return m
}

func (m *mockSubscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) GetLatestByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) GetPendingByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error) {
	args := m.Called(ctx, providerCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) GetCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func newWebhookTestContext(payload []byte, signature string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(payload)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	logger := zap.NewNop()

	newHandler := func(events *mockWebhookEventRepository, subs *mockSubscriptionRepository) *handler.WebhookHandler {
		reconciler := usecase.NewReconciler(
			nil, subs, nil, nil, nil, nil, nil, nil, nil, logger)
		return handler.NewWebhookHandler(logger, testWebhookSecret, events, reconciler)
	}

	t.Run("invalid signature is rejected without storing", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		h := newHandler(events, new(mockSubscriptionRepository))

		payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)
		c, rec := newWebhookTestContext(payload, "t=123,v1=deadbeef")

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		events.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing signature header is rejected", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		h := newHandler(events, new(mockSubscriptionRepository))

		payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)
		c, rec := newWebhookTestContext(payload, "")

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unhandled event class is acknowledged and settled", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		h := newHandler(events, new(mockSubscriptionRepository))

		payload := []byte(`{"id": "evt_2", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`)
		events.On("SaveEvent", mock.Anything, "evt_2", "customer.created", mock.Anything).Return(nil)
		events.On("GetEvent", mock.Anything, "evt_2").
			Return(&model.WebhookEvent{ProviderEventID: "evt_2", Status: model.WebhookStatusPending}, nil)
		events.On("MarkProcessing", mock.Anything, "evt_2").Return(true, nil)
		events.On("MarkProcessed", mock.Anything, "evt_2").Return(nil)

		c, rec := newWebhookTestContext(payload, signPayload(payload, testWebhookSecret))

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "skipped")
		events.AssertExpectations(t)
	})

	t.Run("already completed delivery short-circuits", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		subs := new(mockSubscriptionRepository)
		h := newHandler(events, subs)

		payload := []byte(`{"id": "evt_3", "type": "customer.subscription.trial_will_end", "data": {"object": {"id": "sub_1"}}}`)
		events.On("SaveEvent", mock.Anything, "evt_3", "customer.subscription.trial_will_end", mock.Anything).Return(nil)
		events.On("GetEvent", mock.Anything, "evt_3").
			Return(&model.WebhookEvent{ProviderEventID: "evt_3", Status: model.WebhookStatusCompleted}, nil)

		c, rec := newWebhookTestContext(payload, signPayload(payload, testWebhookSecret))

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate")
		subs.AssertNotCalled(t, "GetByProviderSubscriptionID", mock.Anything, mock.Anything)
	})

	t.Run("in-flight delivery is acknowledged without reprocessing", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		subs := new(mockSubscriptionRepository)
		h := newHandler(events, subs)

		payload := []byte(`{"id": "evt_6", "type": "customer.subscription.trial_will_end", "data": {"object": {"id": "sub_1"}}}`)
		events.On("SaveEvent", mock.Anything, "evt_6", "customer.subscription.trial_will_end", mock.Anything).Return(nil)
		events.On("GetEvent", mock.Anything, "evt_6").
			Return(&model.WebhookEvent{ProviderEventID: "evt_6", Status: model.WebhookStatusProcessing}, nil)
		events.On("MarkProcessing", mock.Anything, "evt_6").Return(false, nil)

		c, rec := newWebhookTestContext(payload, signPayload(payload, testWebhookSecret))

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate")
		subs.AssertNotCalled(t, "GetByProviderSubscriptionID", mock.Anything, mock.Anything)
		events.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("processed event is marked completed", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		subs := new(mockSubscriptionRepository)
		h := newHandler(events, subs)

		payload := []byte(`{"id": "evt_4", "type": "customer.subscription.trial_will_end", "data": {"object": {"id": "sub_unknown"}}}`)
		events.On("SaveEvent", mock.Anything, "evt_4", "customer.subscription.trial_will_end", mock.Anything).Return(nil)
		events.On("GetEvent", mock.Anything, "evt_4").
			Return(&model.WebhookEvent{ProviderEventID: "evt_4", Status: model.WebhookStatusPending}, nil)
		events.On("MarkProcessing", mock.Anything, "evt_4").Return(true, nil)
		subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_unknown").Return(nil, nil)
		events.On("MarkProcessed", mock.Anything, "evt_4").Return(nil)

		c, rec := newWebhookTestContext(payload, signPayload(payload, testWebhookSecret))

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		events.AssertExpectations(t)
	})

	t.Run("processing failure records the failure and asks for retry", func(t *testing.T) {
		events := new(mockWebhookEventRepository)
		subs := new(mockSubscriptionRepository)
		h := newHandler(events, subs)

		payload := []byte(`{"id": "evt_5", "type": "customer.subscription.trial_will_end", "data": {"object": {"id": "sub_1"}}}`)
		events.On("SaveEvent", mock.Anything, "evt_5", "customer.subscription.trial_will_end", mock.Anything).Return(nil)
		events.On("GetEvent", mock.Anything, "evt_5").
			Return(&model.WebhookEvent{ProviderEventID: "evt_5", Status: model.WebhookStatusPending}, nil)
		events.On("MarkProcessing", mock.Anything, "evt_5").Return(true, nil)
		subs.On("GetByProviderSubscriptionID", mock.Anything, "sub_1").
			Return(nil, fmt.Errorf("connection refused"))
		events.On("MarkFailed", mock.Anything, "evt_5", mock.Anything).Return(nil)

		c, rec := newWebhookTestContext(payload, signPayload(payload, testWebhookSecret))

		err := h.HandleWebhook(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		events.AssertExpectations(t)
		events.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})
}
