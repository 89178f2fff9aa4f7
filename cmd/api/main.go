package main

import (
	"checkout-reconciler/internal/client"
	"checkout-reconciler/internal/config"
	"checkout-reconciler/internal/notification"
	"checkout-reconciler/internal/observability"
	"checkout-reconciler/internal/pricing"
	"checkout-reconciler/internal/repository"
	"checkout-reconciler/internal/server"
	"checkout-reconciler/internal/service"
	"checkout-reconciler/internal/webhook"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("checkout-reconciler stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry, cfg.Environment.Name, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	pricingCfg, err := pricing.LoadConfigFile(cfg.Pricing.TablePath, pricing.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load rate table: %w", err)
	}
	engine := pricing.NewEngine(pricingCfg)

	var sessionRepo repository.CheckoutSessionRepository
	rdb, err := client.InitRedisClient(ctx, cfg.Redis)
	if err != nil {
		// resume is an optimization; checkout still works without it
		logger.Warn("redis unavailable, checkout resume disabled", slog.String("error", err.Error()))
	}
	if rdb != nil {
		defer rdb.Close()
		sessionRepo = repository.NewCheckoutSessionRepository(rdb, cfg.Redis.CheckoutTTL)
	}

	var sink notification.Notifier = notification.NewLogNotifier(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notification.NewKafkaNotifier(cfg.Kafka.NotificationTopic, cfg.Kafka.Brokers...)
		defer kafkaNotifier.Close()
		sink = kafkaNotifier
	}
	notifier := notification.NewAsync(sink, logger)

	if cfg.Payment.WebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}
	gateway := client.NewResilientGateway(
		client.NewStripeClient(&cfg.Payment),
		client.ResilienceSettings{
			Timeout:     cfg.Payment.Timeout,
			MaxFailures: cfg.Payment.BreakerFailures,
			Cooldown:    cfg.Payment.BreakerCooldown,
		},
		logger,
	)

	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	orderService := service.NewOrderService(db, engine, orderRepo, notifier, logger)
	checkoutService := service.NewCheckoutService(orderService, gateway, sessionRepo, cfg.Payment.Currency, logger)
	webhookService := service.NewWebhookService(
		db,
		webhook.NewVerifier(cfg.Payment.WebhookSecret, cfg.Payment.WebhookTolerance),
		orderRepo,
		eventRepo,
		notifier,
		logger,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(logger, cfg.Auth.JWTSecret, orderService, checkoutService, webhookService)

	logger.Info("starting HTTP server", slog.String("addr", serverAddr), slog.String("environment", cfg.Environment.Name))
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Info("signal received, starting graceful shutdown", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", slog.String("error", err.Error()))
	}
	// in-flight notifications were detached from their requests
	notifier.Wait()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", slog.String("error", err.Error()))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
