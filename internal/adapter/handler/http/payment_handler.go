package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/middleware/auth"
	"github.com/stitchlane/billing-service/internal/usecase"
)

// PaymentHandler serves the tenant payment history API.
type PaymentHandler struct {
	logger        *zap.Logger
	subscriptions *usecase.SubscriptionService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(logger *zap.Logger, subscriptions *usecase.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{logger: logger, subscriptions: subscriptions}
}

func (h *PaymentHandler) GetPayments(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	limit, offset := pagination(c)
	entries, total, err := h.subscriptions.GetPaymentHistory(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error("Error fetching payment history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch payments"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"payments": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}
