package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/stitchlane/billing-service/internal/adapter/handler/http"
	"github.com/stitchlane/billing-service/internal/config"
	"github.com/stitchlane/billing-service/internal/infrastructure/database"
	"github.com/stitchlane/billing-service/internal/middleware/auth"
	"github.com/stitchlane/billing-service/internal/usecase"
	apperrors "github.com/stitchlane/billing-service/pkg/errors"
	"github.com/stitchlane/billing-service/pkg/logger"
)

// Services bundles the usecases the HTTP surface exposes.
type Services struct {
	Reconciler    *usecase.Reconciler
	Credits       *usecase.CreditService
	Subscriptions *usecase.SubscriptionService
	Onboarding    *usecase.OnboardingService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	services *Services
}

// CustomValidator adapts go-playground/validator to echo.
type CustomValidator struct {
	validate *validator.Validate
}

func (v *CustomValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, log *zap.Logger, repos *database.Repositories, services *Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validate: validator.New()}
	e.HTTPErrorHandler = errorHandler(log)

	// Middleware
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		repos:    repos,
		services: services,
	}
}

// errorHandler renders errors that escape the handlers. Coded
// application errors map to their HTTP status; everything else is a 500.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		status := http.StatusInternalServerError
		code := apperrors.ErrInternal
		message := "Internal server error"

		var echoErr *echo.HTTPError
		var appErr *apperrors.AppError
		switch {
		case apperrors.As(err, &echoErr):
			status = echoErr.Code
			message = fmt.Sprintf("%v", echoErr.Message)
		case apperrors.As(err, &appErr):
			code = appErr.Code()
			status = apperrors.HTTPStatus(code)
			message = appErr.Error()
		}

		log.Error("HTTP error",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path))

		if !c.Response().Committed {
			if writeErr := c.JSON(status, echo.Map{"error": message, "code": code}); writeErr != nil {
				log.Error("Failed to send error response", zap.Error(writeErr))
			}
		}
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	plansHandler := handlers.NewPlansHandler(s.logger, s.repos.Plan)
	onboardingHandler := handlers.NewOnboardingHandler(s.logger, s.services.Onboarding)
	creditHandler := handlers.NewCreditHandler(s.logger, s.services.Credits)
	paymentHandler := handlers.NewPaymentHandler(s.logger, s.services.Subscriptions)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.services.Subscriptions)
	webhookHandler := handlers.NewWebhookHandler(
		s.logger,
		s.config.Service.Stripe.WebhookSecret,
		s.repos.WebhookEvent,
		s.services.Reconciler,
	)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
			"/api/v1/plans",
			"/api/v1/registrations",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	v1.GET("/plans", plansHandler.GetPlans)
	v1.POST("/registrations", onboardingHandler.Register)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	credits := protected.Group("/credits")
	credits.GET("", creditHandler.GetBalance)
	credits.GET("/history", creditHandler.GetHistory)
	credits.POST("/consume", creditHandler.ConsumeCredits)

	subscriptions := protected.Group("/subscriptions")
	subscriptions.GET("/current", subscriptionHandler.GetCurrentSubscription)
	subscriptions.PUT("/auto-renew", subscriptionHandler.SetAutoRenew)

	protected.GET("/payments", paymentHandler.GetPayments)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
