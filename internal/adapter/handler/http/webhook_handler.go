package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/domain/event"
	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
	"github.com/stitchlane/billing-service/internal/usecase"
)

// WebhookHandler receives provider webhook deliveries. Acknowledgement
// policy: a bad signature is rejected with 400; payloads that verify but
// can never be applied (malformed, unhandled type, no matching local
// state) are acknowledged with 200 so the provider stops redelivering;
// transient failures return 500 to trigger the provider's retry.
type WebhookHandler struct {
	logger        *zap.Logger
	webhookSecret string
	events        repository.WebhookEventRepository
	reconciler    *usecase.Reconciler
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	logger *zap.Logger,
	webhookSecret string,
	events repository.WebhookEventRepository,
	reconciler *usecase.Reconciler,
) *WebhookHandler {
	return &WebhookHandler{
		logger:        logger,
		webhookSecret: webhookSecret,
		events:        events,
		reconciler:    reconciler,
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	provEvent, err := webhook.ConstructEventWithOptions(
		body,
		sig,
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		h.logger.Error("Webhook signature verification failed",
			zap.Error(err),
		)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Webhook signature verification failed",
		})
	}

	h.logger.Info("Webhook event received",
		zap.String("type", string(provEvent.Type)),
		zap.String("id", provEvent.ID),
		zap.Time("created", time.Unix(provEvent.Created, 0)),
	)

	ctx := c.Request().Context()

	// Store before processing: duplicates collapse on the provider event
	// id, and a crash mid-processing leaves the event for the retry sweep.
	if err := h.events.SaveEvent(ctx, provEvent.ID, string(provEvent.Type), body); err != nil {
		h.logger.Error("Failed to persist webhook event",
			zap.String("event_id", provEvent.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to store event"})
	}

	stored, err := h.events.GetEvent(ctx, provEvent.ID)
	if err == nil && stored != nil && stored.Status == model.WebhookStatusCompleted {
		h.logger.Info("Duplicate webhook delivery, already processed",
			zap.String("event_id", provEvent.ID))
		return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
	}

	// Claim the event so the retry sweep (or a concurrent delivery of
	// the same event) cannot process it at the same time.
	claimed, err := h.events.MarkProcessing(ctx, provEvent.ID)
	if err != nil {
		h.logger.Error("Failed to claim webhook event",
			zap.String("event_id", provEvent.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to claim event"})
	}
	if !claimed {
		h.logger.Info("Webhook event already in flight",
			zap.String("event_id", provEvent.ID))
		return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
	}

	parsed, err := event.ParseStripe(provEvent)
	if err != nil {
		if errors.Is(err, event.ErrUnhandledEventType) || errors.Is(err, event.ErrMalformedPayload) {
			// Redelivery cannot fix these; acknowledge and settle.
			h.logger.Info("Acknowledging unprocessable event",
				zap.String("event_id", provEvent.ID),
				zap.String("type", string(provEvent.Type)),
				zap.Error(err))
			if markErr := h.events.MarkProcessed(ctx, provEvent.ID); markErr != nil {
				h.logger.Error("Failed to settle event", zap.Error(markErr))
			}
			return c.JSON(http.StatusOK, echo.Map{"received": true, "skipped": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to parse event"})
	}

	if err := h.reconciler.ProcessEvent(ctx, parsed); err != nil {
		h.logger.Error("Event processing failed",
			zap.String("event_id", provEvent.ID),
			zap.String("type", string(provEvent.Type)),
			zap.Error(err))
		if markErr := h.events.MarkFailed(ctx, provEvent.ID, err); markErr != nil {
			h.logger.Error("Failed to record event failure", zap.Error(markErr))
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Event processing failed"})
	}

	if err := h.events.MarkProcessed(ctx, provEvent.ID); err != nil {
		h.logger.Error("Failed to mark event processed",
			zap.String("event_id", provEvent.ID),
			zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
