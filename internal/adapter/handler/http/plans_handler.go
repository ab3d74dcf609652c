package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/domain/repository"
)

// PlansHandler serves the public plan catalog.
type PlansHandler struct {
	logger *zap.Logger
	plans  repository.PlanRepository
}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler(logger *zap.Logger, plans repository.PlanRepository) *PlansHandler {
	return &PlansHandler{logger: logger, plans: plans}
}

func (h *PlansHandler) GetPlans(c echo.Context) error {
	plans, err := h.plans.ListActive(c.Request().Context())
	if err != nil {
		h.logger.Error("Error fetching plans", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to fetch plans",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"plans": plans,
	})
}
