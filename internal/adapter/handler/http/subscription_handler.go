package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/middleware/auth"
	"github.com/stitchlane/billing-service/internal/usecase"
)

// SubscriptionHandler serves the tenant subscription API.
type SubscriptionHandler struct {
	logger        *zap.Logger
	subscriptions *usecase.SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(logger *zap.Logger, subscriptions *usecase.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{logger: logger, subscriptions: subscriptions}
}

// AutoRenewRequest is the body of PUT /subscriptions/auto-renew.
type AutoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew" validate:"required"`
}

func (h *SubscriptionHandler) GetCurrentSubscription(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	sub, err := h.subscriptions.GetCurrent(c.Request().Context(), tenantID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSubscriptionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No current subscription",
				"code":  "SUBSCRIPTION_NOT_FOUND",
			})
		}
		h.logger.Error("Error fetching current subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch subscription"})
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) SetAutoRenew(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	var req AutoRenewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "auto_renew is required",
			"code":  "INVALID_BODY",
		})
	}

	if err := h.subscriptions.SetAutoRenew(c.Request().Context(), tenantID, *req.AutoRenew); err != nil {
		if errors.Is(err, domainErrors.ErrSubscriptionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No current subscription",
				"code":  "SUBSCRIPTION_NOT_FOUND",
			})
		}
		if errors.Is(err, domainErrors.ErrTenantNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Unknown tenant",
				"code":  "TENANT_NOT_FOUND",
			})
		}
		h.logger.Error("Error updating auto-renew",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update auto-renew"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"auto_renew": *req.AutoRenew,
	})
}
