package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/stitchlane/billing-service/internal/domain/errors"
	"github.com/stitchlane/billing-service/internal/usecase"
)

// OnboardingHandler serves the public signup endpoint. The returned
// registration id is attached to the checkout session metadata by the
// frontend; the completion webhook consumes it.
type OnboardingHandler struct {
	logger     *zap.Logger
	onboarding *usecase.OnboardingService
}

// NewOnboardingHandler creates a new onboarding handler.
func NewOnboardingHandler(logger *zap.Logger, onboarding *usecase.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{logger: logger, onboarding: onboarding}
}

// RegisterRequest is the body of POST /registrations.
type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	TenantName string `json:"tenant_name" validate:"required,min=1,max=200"`
	UserName   string `json:"user_name" validate:"max=200"`
	PlanID     int64  `json:"plan_id" validate:"required,gt=0"`
}

func (h *OnboardingHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
			"code":  "INVALID_BODY",
		})
	}

	reg, err := h.onboarding.Register(c.Request().Context(), usecase.RegisterInput{
		Email:      req.Email,
		TenantName: req.TenantName,
		UserName:   req.UserName,
		PlanID:     req.PlanID,
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrPlanNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Unknown plan",
				"code":  "PLAN_NOT_FOUND",
			})
		}
		h.logger.Error("Error creating registration", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create registration"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"registration_id": reg.ID,
		"plan_id":         reg.PlanID,
	})
}
