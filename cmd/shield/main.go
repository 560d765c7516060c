package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/davidleathers/callshield-core/internal/api/rest"
	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/validation"
	"github.com/davidleathers/callshield-core/internal/infrastructure/auth"
	"github.com/davidleathers/callshield-core/internal/infrastructure/config"
	"github.com/davidleathers/callshield-core/internal/infrastructure/repository"
	"github.com/davidleathers/callshield-core/internal/infrastructure/storage"
	"github.com/davidleathers/callshield-core/internal/infrastructure/telemetry"
	"github.com/davidleathers/callshield-core/internal/metrics"
	"github.com/davidleathers/callshield-core/internal/service/analytics"
	"github.com/davidleathers/callshield-core/internal/service/blocker"
	"github.com/davidleathers/callshield-core/internal/service/classification"
	"github.com/davidleathers/callshield-core/internal/service/patterns"
	syncsvc "github.com/davidleathers/callshield-core/internal/service/sync"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting callshield core",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port))

	clock := call.RealClock{}
	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	store, err := storage.NewStore(cfg.LocalStore.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	queue, err := storage.NewQueue(ctx, store, clock, logger)
	if err != nil {
		return err
	}

	validator := validation.New(validation.WithCacheSize(cfg.Validation.CacheMaxEntries))
	engine := classification.NewEngine(validator)
	analyzer := patterns.NewAnalyzer(clock)
	aggregator := analytics.NewAggregator(clock)

	var (
		reconciler *syncsvc.Reconciler
		authSvc    *auth.Service
	)
	if cfg.Database.URL != "" {
		if cfg.Security.JWTSecret == "" {
			return fmt.Errorf("security.jwt_secret is required when a database url is configured")
		}
		authSvc, err = auth.NewService(cfg.Security.JWTSecret, cfg.Security.TokenExpiry, clock)
		if err != nil {
			return err
		}

		remote, err := repository.NewRemoteStore(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			return err
		}
		defer remote.Close()

		reconciler = syncsvc.NewReconciler(queue, remote, syncsvc.Config{
			Timeout:        cfg.Sync.Timeout,
			Interval:       cfg.Sync.Interval,
			PushesPerMin:   cfg.Sync.PushesPerMin,
			CallBatchLimit: cfg.Sync.CallBatchLimit,
		}, clock, logger, reg)
		reconciler.Start(ctx)
		defer reconciler.Stop()
	} else {
		logger.Info("no database url configured, running local-only")
	}

	svc := blocker.NewService(queue, engine, analyzer, aggregator,
		blocker.NoopBridge{}, clock, logger, reg)

	handler := rest.NewHandler(svc, reconciler, authSvc, logger, cfg.Version)
	server := rest.NewServer(rest.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")
	return server.Shutdown(context.Background())
}
