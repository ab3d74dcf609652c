package repository

import (
	"context"
	"encoding/json"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// WebhookEventRepository stores received provider events for dedupe,
// audit and deferred retry.
type WebhookEventRepository interface {
	// SaveEvent inserts the event, collapsing duplicate deliveries of the
	// same provider event id into a single row.
	SaveEvent(ctx context.Context, eventID, eventType string, data json.RawMessage) error

	GetEvent(ctx context.Context, eventID string) (*model.WebhookEvent, error)

	// MarkProcessing atomically claims the event for one worker. Returns
	// false when another worker holds the claim or the event already
	// completed. A claim expires after a lease so a crashed worker does
	// not strand the event.
	MarkProcessing(ctx context.Context, eventID string) (bool, error)

	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, processingErr error) error

	// GetPendingEvents returns pending or failed events whose retry time
	// has passed, oldest first.
	GetPendingEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
