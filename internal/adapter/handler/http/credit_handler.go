package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/middleware/auth"
	"github.com/stitchlane/billing-service/internal/usecase"
)

// CreditHandler serves the tenant credit ledger API.
type CreditHandler struct {
	logger  *zap.Logger
	credits *usecase.CreditService
}

// NewCreditHandler creates a new credit handler.
func NewCreditHandler(logger *zap.Logger, credits *usecase.CreditService) *CreditHandler {
	return &CreditHandler{logger: logger, credits: credits}
}

// ConsumeCreditsRequest is the body of POST /credits/consume.
type ConsumeCreditsRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

func (h *CreditHandler) GetBalance(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	ledger, err := h.credits.GetBalance(c.Request().Context(), tenantID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrLedgerNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No credit ledger for tenant",
				"code":  "LEDGER_NOT_FOUND",
			})
		}
		h.logger.Error("Error fetching credit balance", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch balance"})
	}

	return c.JSON(http.StatusOK, ledger)
}

func (h *CreditHandler) GetHistory(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	limit, offset := pagination(c)
	entries, total, err := h.credits.GetHistory(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error("Error fetching credit history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch history"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *CreditHandler) ConsumeCredits(c echo.Context) error {
	tenantID, err := auth.GetTenantID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}

	var req ConsumeCreditsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "amount must be a positive integer",
			"code":  "INVALID_AMOUNT",
		})
	}

	ledger, err := h.credits.DeductCredits(c.Request().Context(), tenantID, req.Amount)
	if err != nil {
		var insufficient *domainErrors.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{
				"error":     insufficient.Error(),
				"code":      "INSUFFICIENT_CREDITS",
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			})
		}
		if errors.Is(err, domainErrors.ErrLedgerNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No credit ledger for tenant",
				"code":  "LEDGER_NOT_FOUND",
			})
		}
		h.logger.Error("Error consuming credits",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("amount", req.Amount),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to consume credits"})
	}

	return c.JSON(http.StatusOK, ledger)
}

// pagination reads limit/offset query params with sane bounds.
func pagination(c echo.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
