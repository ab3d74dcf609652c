package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stitchlane/billing-service/internal/domain/model"
	domainRepo "github.com/stitchlane/billing-service/internal/domain/repository"
)

// maxProcessingAttempts bounds automatic retries. Events past the limit
// stay failed and need manual intervention.
const maxProcessingAttempts = 10

// processingLease is how long a claim on an event lasts before the
// retry sweep may pick it up again.
const processingLease = 10 * time.Minute

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository.
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookEventRepository {
	return &webhookEventRepository{db: db, logger: logger}
}

func (r *webhookEventRepository) SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error {
	var payload model.JSONB
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}

	event := model.WebhookEvent{
		ProviderEventID: eventID,
		EventType:       eventType,
		Status:          model.WebhookStatusPending,
		Data:            payload,
	}

	// Duplicate deliveries of the same provider event collapse into the
	// first stored row.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(&event).Error
	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}
	return nil
}

func (r *webhookEventRepository) GetEvent(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return &event, nil
}

func (r *webhookEventRepository) MarkProcessing(ctx context.Context, eventID string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Where("status IN ? OR (status = ? AND next_retry_at <= ?)",
			[]model.WebhookStatus{model.WebhookStatusPending, model.WebhookStatusFailed},
			model.WebhookStatusProcessing, now).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusProcessing,
			"next_retry_at": now.Add(processingLease),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusCompleted,
			"processed_at":  now,
			"last_error":    nil,
			"next_retry_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, eventID string, processingErr error) error {
	var event model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		return fmt.Errorf("failed to load event for failure update: %w", err)
	}

	attempts := event.ProcessingAttempts + 1
	errMsg := processingErr.Error()

	// Backoff doubles per attempt, 5 minutes up to a day.
	backoff := time.Duration(5*(1<<uint(event.ProcessingAttempts))) * time.Minute
	if backoff > 24*time.Hour {
		backoff = 24 * time.Hour
	}
	nextRetry := time.Now().Add(backoff)

	err = r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": attempts,
			"last_error":          errMsg,
			"next_retry_at":       nextRetry,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}

	r.logger.Warn("Webhook event marked failed",
		zap.String("event_id", eventID),
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", nextRetry),
		zap.String("error", errMsg))
	return nil
}

func (r *webhookEventRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent
	now := time.Now()
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status IN ? AND next_retry_at <= ?)",
			model.WebhookStatusPending,
			[]model.WebhookStatus{model.WebhookStatusFailed, model.WebhookStatusProcessing}, now).
		Where("processing_attempts < ?", maxProcessingAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}
