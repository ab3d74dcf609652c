package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	stripeapi "github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/domain/event"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
)

// WebhookRetrySweeper periodically replays stored events that failed
// transiently, each after its backoff. The reconciler's idempotency
// guarantees make replaying a partially applied event safe.
type WebhookRetrySweeper struct {
	events     repository.WebhookEventRepository
	reconciler *Reconciler
	interval   time.Duration
	batchSize  int
	logger     *zap.Logger
}

// NewWebhookRetrySweeper creates a new retry sweeper.
func NewWebhookRetrySweeper(
	events repository.WebhookEventRepository,
	reconciler *Reconciler,
	interval time.Duration,
	logger *zap.Logger,
) *WebhookRetrySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WebhookRetrySweeper{
		events:     events,
		reconciler: reconciler,
		interval:   interval,
		batchSize:  50,
		logger:     logger,
	}
}

// Run sweeps until the context is canceled.
func (s *WebhookRetrySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Webhook retry sweeper started",
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Webhook retry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *WebhookRetrySweeper) sweep(ctx context.Context) {
	pending, err := s.events.GetPendingEvents(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to fetch pending webhook events", zap.Error(err))
		return
	}

	for _, stored := range pending {
		if ctx.Err() != nil {
			return
		}
		s.replay(ctx, stored)
	}
}

func (s *WebhookRetrySweeper) replay(ctx context.Context, stored *model.WebhookEvent) {
	claimed, err := s.events.MarkProcessing(ctx, stored.ProviderEventID)
	if err != nil {
		s.logger.Error("Failed to claim webhook event",
			zap.String("event_id", stored.ProviderEventID),
			zap.Error(err))
		return
	}
	if !claimed {
		// Another worker holds the event, or it completed since the
		// batch was fetched.
		return
	}

	raw, err := json.Marshal(stored.Data)
	if err != nil {
		s.settle(ctx, stored, err)
		return
	}

	var provEvent stripeapi.Event
	if err := json.Unmarshal(raw, &provEvent); err != nil {
		s.settle(ctx, stored, err)
		return
	}

	parsed, err := event.ParseStripe(provEvent)
	if err != nil {
		// Malformed or unhandled payloads will never succeed; settle them.
		s.settle(ctx, stored, err)
		return
	}

	if err := s.reconciler.ProcessEvent(ctx, parsed); err != nil {
		if markErr := s.events.MarkFailed(ctx, stored.ProviderEventID, err); markErr != nil {
			s.logger.Error("Failed to record event failure",
				zap.String("event_id", stored.ProviderEventID),
				zap.Error(markErr))
		}
		return
	}

	if err := s.events.MarkProcessed(ctx, stored.ProviderEventID); err != nil {
		s.logger.Error("Failed to mark event processed",
			zap.String("event_id", stored.ProviderEventID),
			zap.Error(err))
		return
	}

	s.logger.Info("Replayed webhook event",
		zap.String("event_id", stored.ProviderEventID),
		zap.String("event_type", stored.EventType),
		zap.Int("attempts", stored.ProcessingAttempts))
}

// settle marks an event completed even though it was not applied, so a
// payload that can never parse stops occupying the retry queue.
func (s *WebhookRetrySweeper) settle(ctx context.Context, stored *model.WebhookEvent, cause error) {
	if !errors.Is(cause, event.ErrMalformedPayload) && !errors.Is(cause, event.ErrUnhandledEventType) {
		s.logger.Warn("Settling unreplayable webhook event",
			zap.String("event_id", stored.ProviderEventID),
			zap.Error(cause))
	}
	if err := s.events.MarkProcessed(ctx, stored.ProviderEventID); err != nil {
		s.logger.Error("Failed to settle event",
			zap.String("event_id", stored.ProviderEventID),
			zap.Error(err))
	}
}
