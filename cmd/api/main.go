// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/socialsync/internal/auth"
	"github.com/carterperez-dev/socialsync/internal/billing"
	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/health"
	"github.com/carterperez-dev/socialsync/internal/inbox"
	"github.com/carterperez-dev/socialsync/internal/instagram"
	"github.com/carterperez-dev/socialsync/internal/linking"
	"github.com/carterperez-dev/socialsync/internal/middleware"
	"github.com/carterperez-dev/socialsync/internal/server"
	"github.com/carterperez-dev/socialsync/internal/subscription"
	"github.com/carterperez-dev/socialsync/internal/usage"
	"github.com/carterperez-dev/socialsync/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	if cfg.SignatureBypassAllowed() {
		logger.Warn("webhook signature verification is DISABLED")
	}

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := core.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	go verifier.Run(ctx)
	logger.Info("token verifier initialized",
		"jwks", cfg.Auth.JWKSURL != "",
		"issuer", cfg.Auth.Issuer,
	)

	subRepo := subscription.NewRepository(db.DB)
	reconciler := subscription.NewReconciler(
		subRepo,
		subscription.NewRedisCache(redis.Client, cfg.Subscription.CacheTTL),
		billing.NewClient(cfg.Billing),
		cfg.Subscription,
		subscription.WithLogger(logger),
	)
	subHandler := subscription.NewHandler(reconciler)

	rechecker, err := subscription.NewRechecker(reconciler, subRepo, cfg.Subscription, logger)
	if err != nil {
		return err
	}
	rechecker.Start()

	linkSvc := linking.NewService(
		linking.NewRepository(db.DB),
		reconciler,
		cfg.Linking,
	)
	linkHandler := linking.NewHandler(linkSvc)

	meter := usage.NewMeter(redis.Client, cfg.Usage)
	usageHandler := usage.NewHandler(meter, reconciler)

	dispatcher := webhook.NewDispatcher(cfg.Webhook.HandlerTimeout, logger)
	inbox.New(inbox.Deps{
		Linker:      linkSvc,
		Plans:       reconciler,
		Meter:       meter,
		Queue:       inbox.NewQueue(redis.Client, cfg.Instagram.IngestStream),
		Replier:     instagram.NewClient(cfg.Instagram),
		Guard:       inbox.NewGuard(redis.Client, cfg.Webhook.IdempotencyTTL),
		AccessToken: cfg.Instagram.AccessToken,
		Logger:      logger,
	}).Register(dispatcher)

	gateway := webhook.NewGateway(
		cfg.Webhook,
		cfg.SignatureBypassAllowed(),
		dispatcher,
		logger,
	)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", core.MetricsHandler())

	gateway.RegisterRoutes(router)

	apiLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Scope:   "api",
		Limit:   middleware.LimitFromConfig(cfg.RateLimit),
		KeyFunc: middleware.KeyByIP,
	}).Handler
	issueLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Scope:   "link_code",
		Limit:   middleware.PerMinute(5, 2),
		KeyFunc: middleware.KeyByCallerAndRoute,
	}).Handler

	authenticator := middleware.Authenticator(verifier)

	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS))
		r.Use(apiLimiter)

		linkHandler.RegisterRoutes(r, authenticator, issueLimiter)
		subHandler.RegisterRoutes(r, authenticator)
		usageHandler.RegisterRoutes(r, authenticator)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+cfg.Webhook.HandlerTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook dispatcher shutdown error", "error", err)
	}

	if err := rechecker.Stop(shutdownCtx); err != nil {
		logger.Error("rechecker shutdown error", "error", err)
	}

	if err := reconciler.Close(shutdownCtx); err != nil {
		logger.Error("reconciler shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
