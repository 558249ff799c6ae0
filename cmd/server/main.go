package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solweekly/weekly-roundup/internal/api"
	"github.com/solweekly/weekly-roundup/internal/config"
	"github.com/solweekly/weekly-roundup/internal/content"
	"github.com/solweekly/weekly-roundup/internal/db"
	"github.com/solweekly/weekly-roundup/internal/market"
	"github.com/solweekly/weekly-roundup/internal/metrics"
	"github.com/solweekly/weekly-roundup/internal/newsletter"
	"github.com/solweekly/weekly-roundup/internal/provider"
	"github.com/solweekly/weekly-roundup/internal/ratelimiter"
	"github.com/solweekly/weekly-roundup/internal/repository"
	"github.com/solweekly/weekly-roundup/internal/service"
	"github.com/solweekly/weekly-roundup/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	// ---- local subscriber store ----
	var local repository.Backend
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		local = repository.NewPostgresBackend(pool)
	} else {
		local = repository.NewFileBackend(cfg.SubscribersFile, cfg.ReadOnlyFS)
	}

	// ---- email provider and remote store ----
	resend := provider.NewResendClient(
		cfg.ResendBaseURL,
		cfg.ResendAPIKey,
		cfg.ResendAudienceID,
		cfg.ProviderTimeout,
		provider.WithCircuitBreaker(provider.NewCircuitBreaker(provider.DefaultBreakerConfig(), logger)),
	)

	var remote repository.Backend
	if cfg.RemoteStoreConfigured() {
		remote = repository.NewRemoteBackend(resend)
	} else {
		logger.Warn("remote subscriber store disabled", zap.Strings("missing", cfg.MissingRemoteStoreVars()))
	}

	// Left nil when unconfigured so the dispatcher reports what is missing.
	var sender provider.Sender
	switch {
	case !cfg.SenderConfigured():
		logger.Warn("newsletter delivery disabled", zap.Strings("missing", cfg.MissingSenderVars()))
	case cfg.EmailProvider == config.EmailProviderSMTP:
		sender = provider.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.ProviderTimeout)
	default:
		sender = resend
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	renderer, err := newsletter.NewRenderer(cfg.SiteURL)
	if err != nil {
		logger.Fatal("failed to build newsletter renderer", zap.Error(err))
	}

	auth := service.NewAdminAuth(cfg.AdminKey)
	if !auth.Configured() {
		logger.Warn("ADMIN_KEY is not set; admin endpoints will refuse every request")
	}

	registry := service.NewRegistry(local, remote, cfg.MissingRemoteStoreVars(), logger, m.RegistryHooks())
	runner := worker.NewBatchRunner(cfg.BatchSize, cfg.BatchDelay, logger, m.BatchHooks())
	dispatcher := service.NewDispatcher(
		auth,
		content.NewFileSource(cfg.ContentDir),
		registry,
		sender,
		renderer,
		runner,
		service.DispatcherOptions{
			From:          cfg.FromEmail,
			MissingSender: cfg.MissingSenderVars(),
			Hooks:         m.DispatchHooks(),
		},
		logger,
	)

	marketSvc := market.NewService(market.Options{
		CoinGeckoURL:     cfg.CoinGeckoURL,
		LlamaURL:         cfg.LlamaURL,
		BinanceURL:       cfg.BinanceURL,
		NewsAPIURL:       cfg.NewsAPIURL,
		CryptoCompareURL: cfg.CryptoCompareURL,
		NewsAPIKey:       cfg.NewsAPIKey,
		Timeout:          cfg.ProviderTimeout,
		OnSource:         m.MarketSource,
	}, logger)

	logger.Info("subscriber registry ready",
		zap.String("local_store", local.Kind()),
		zap.Bool("local_writable", local.Writable()),
		zap.Bool("remote_store", remote != nil),
		zap.String("email_provider", cfg.EmailProvider),
	)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Registry:      registry,
		Auth:          auth,
		Dispatcher:    dispatcher,
		Market:        marketSvc,
		Limiter:       ratelimiter.New(cfg.PublicRateLimit, cfg.PublicRateBurst),
		Gatherer:      reg,
		EmailProvider: cfg.EmailProvider,
		SenderReady:   sender != nil,
		TrustProxy:    cfg.TrustProxy,
		OnSubscribe:   m.SubscribeResult,
		OnRateLimited: m.RateLimited,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// Stop accepting new requests and let in-flight sends finish. A
	// newsletter send still running after the timeout is cut off.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
