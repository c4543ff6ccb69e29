package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vending-payout-console/config"
	"vending-payout-console/internal/adapter/platform"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/internal/service"
	"vending-payout-console/pkg/logger"

	httpHandler "vending-payout-console/internal/adapter/http/handler"
	pgStorage "vending-payout-console/internal/adapter/storage/postgres"
	redisStorage "vending-payout-console/internal/adapter/storage/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Vending Payout Console")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	credentialRepo := pgStorage.NewCredentialRepo(pool)
	beneficiaryRepo := pgStorage.NewBeneficiaryRepo(pool)
	assignmentRepo := pgStorage.NewAssignmentRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	scheduleRepo := pgStorage.NewScheduleRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	responseCache := redisStorage.NewResponseCache(rdb)
	admissionStore := redisStorage.NewAdmissionStore(rdb)

	// Initialize credential vault and signing
	vault, err := service.NewArgon2KeyVault(cfg.Vault.Passphrase, cfg.Vault.Salt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize key vault")
	}
	credentialSvc := service.NewCredentialService(credentialRepo, vault, log)
	if err := credentialSvc.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load signing credentials")
	}
	signer := service.NewRSASigner(credentialSvc)

	// Initialize the gateway
	transport := platform.NewClient(cfg.Platform.SandboxURL, cfg.Platform.LiveURL, log)
	gatewaySvc := service.NewGatewayService(signer, responseCache, admissionStore, transport, cfg.Gateway, log)

	// Initialize settlement services
	payoutLayer := domain.Layer(cfg.Payouts.Layer)
	if !payoutLayer.Valid() {
		log.Fatal().Str("layer", cfg.Payouts.Layer).Msg("Invalid payout layer")
	}
	revenueSource := platform.NewRevenueSource(gatewaySvc, payoutLayer)
	calculatorSvc := service.NewCalculatorService(beneficiaryRepo, assignmentRepo, payoutRepo, revenueSource, log)
	schedulerSvc := service.NewSchedulerService(
		calculatorSvc,
		gatewaySvc,
		payoutRepo,
		beneficiaryRepo,
		scheduleRepo,
		transactor,
		payoutLayer,
		cfg.Payouts.DefaultCron,
		log,
	)

	// Start the cron runner for scheduled batches
	runner := service.NewScheduleRunner(schedulerSvc, log)
	if err := runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start schedule runner")
	}
	defer runner.Stop()

	// Staff console auth
	tokenSvc := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.Expiry, cfg.Auth.Issuer)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SchedulerSvc:   schedulerSvc,
		CalculatorSvc:  calculatorSvc,
		PayoutRepo:     payoutRepo,
		CredentialSvc:  credentialSvc,
		GatewaySvc:     gatewaySvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
