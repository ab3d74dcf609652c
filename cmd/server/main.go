package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/config"
	"github.com/stitchlane/billing-service/internal/infrastructure/database"
	httpServer "github.com/stitchlane/billing-service/internal/infrastructure/http"
	stripeProvider "github.com/stitchlane/billing-service/internal/infrastructure/provider/stripe"
	"github.com/stitchlane/billing-service/internal/notify"
	"github.com/stitchlane/billing-service/internal/usecase"
	"github.com/stitchlane/billing-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Notification backend
	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		dispatcher = notify.NewRedisDispatcher(redisClient, zapLogger)
		zapLogger.Info("Redis notification dispatcher enabled",
			zap.String("addr", cfg.Redis.Addr))
	}

	// Payment provider client
	providerClient := stripeProvider.NewClient(
		cfg.Service.Stripe.SecretKey,
		cfg.Service.ProviderTimeout,
		zapLogger,
	)

	// Usecases
	transactor := usecase.NewTransactor(db)
	resolver := usecase.NewResolver(
		repos.Subscription,
		repos.Tenant,
		repos.User,
		repos.Plan,
		providerClient,
		zapLogger,
	)
	onboarding := usecase.NewOnboardingService(
		transactor,
		repos.PendingRegistration,
		repos.Tenant,
		repos.User,
		repos.Subscription,
		repos.Plan,
		repos.CreditLedger,
		zapLogger,
	)
	reconciler := usecase.NewReconciler(
		transactor,
		repos.Subscription,
		repos.Tenant,
		repos.Plan,
		repos.PaymentHistory,
		repos.CreditLedger,
		resolver,
		onboarding,
		dispatcher,
		zapLogger,
	)
	credits := usecase.NewCreditService(
		repos.CreditLedger,
		dispatcher,
		cfg.Service.CreditWarningRatio,
		zapLogger,
	)
	subscriptions := usecase.NewSubscriptionService(
		repos.Subscription,
		repos.Tenant,
		repos.PaymentHistory,
		providerClient,
		zapLogger,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background retry sweep for failed webhook events
	sweeper := usecase.NewWebhookRetrySweeper(repos.WebhookEvent, reconciler, time.Minute, zapLogger)
	go sweeper.Run(ctx)

	// HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, &httpServer.Services{
		Reconciler:    reconciler,
		Credits:       credits,
		Subscriptions: subscriptions,
		Onboarding:    onboarding,
	})

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
