package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/infrastructure/agora"
	"github.com/closeout/backend/internal/infrastructure/cache"
	"github.com/closeout/backend/internal/infrastructure/config"
	"github.com/closeout/backend/internal/infrastructure/logger"
	"github.com/closeout/backend/internal/infrastructure/persistence/dynamo"
	"github.com/closeout/backend/internal/infrastructure/storage"
	"github.com/closeout/backend/internal/infrastructure/telemetry"
	"github.com/closeout/backend/internal/interfaces/cli"
)

// shutdownTimeout bounds the flush of telemetry and the release of connections
const shutdownTimeout = 10 * time.Second

// loadServices builds the application services from configuration
func loadServices(ctx context.Context) (*cli.Services, func(context.Context), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var closers []func(context.Context) error
	closeAll := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				log.Warn("Shutdown step failed", zap.Error(err))
			}
		}
		_ = logger.Sync(log)
	}
	fail := func(err error) (*cli.Services, func(context.Context), error) {
		closeAll(ctx)
		return nil, nil, err
	}

	log.Debug("Configuration loaded",
		zap.String("env", cfg.App.Env),
		zap.String("ledger_table", cfg.Ledger.Table),
		zap.Bool("archive", cfg.Archive.Enabled),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	// Telemetry
	res := telemetry.SyncResource{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.App.Env,
		Vendor:      string(closeout.SourceAgora),
		LedgerTable: cfg.Ledger.Table,
	}
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Insecure:          cfg.Telemetry.Insecure,
		Resource:          res,
	}, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize tracing: %w", err))
	}
	closers = append(closers, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		Insecure:          cfg.Telemetry.Insecure,
		Resource:          res,
	}, log)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize metrics: %w", err))
	}
	closers = append(closers, mp.Shutdown)

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  mp.Meter(cfg.Telemetry.ServiceName),
		Logger: log,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize sync metrics: %w", err))
	}

	// Ledger store
	db, err := dynamo.NewClient(ctx, &cfg.Ledger)
	if err != nil {
		return fail(err)
	}
	ledgerRepo := dynamo.NewLedgerRepository(db, cfg.Ledger.Table, dynamo.WithLedgerLogger(log))
	saleCenterRepo := dynamo.NewSaleCenterRepository(db, cfg.Ledger.SaleCentersTable, cfg.Ledger.SaleCenterPartition)

	// Vendor
	vendorCfg := agora.NewConfig(cfg.Vendor.BaseURL, cfg.Vendor.Token)
	vendorCfg.TokenHeader = cfg.Vendor.TokenHeader
	vendorCfg.ExportPath = cfg.Vendor.ExportPath
	vendorCfg.Timeout = cfg.Vendor.Timeout
	vendorCfg.MaxRetries = cfg.Vendor.MaxRetries
	vendorCfg.RetryStep = cfg.Vendor.RetryStep
	vendor, err := agora.NewClient(vendorCfg, agora.WithLogger(log))
	if err != nil {
		return fail(fmt.Errorf("failed to create vendor client: %w", err))
	}

	// Lock and till-name directory
	factory := cache.NewFactory(cfg.Redis, cache.WithLogger(log), cache.WithInMemoryFallback(cfg.App.Env != "production"))
	closers = append(closers, func(context.Context) error { return factory.Close() })
	locker, err := factory.CreateSyncLocker()
	if err != nil {
		return fail(err)
	}
	directory := factory.CreateSaleCenterDirectory(saleCenterRepo, cfg.Sync.SaleCenterCacheTTL)

	opts := []closeoutapp.SyncServiceOption{
		closeoutapp.WithLogger(log),
		closeoutapp.WithTracer(tp.Tracer(cfg.Telemetry.ServiceName)),
		closeoutapp.WithMetrics(syncMetrics),
		closeoutapp.WithSyncLocker(locker, cfg.Sync.LockTTL),
		closeoutapp.WithSaleCenterDirectory(directory),
		closeoutapp.WithDayDelay(cfg.Sync.DayDelay),
		closeoutapp.WithMaintenanceLimit(cfg.Sync.MaintenanceLimit),
	}

	// Raw feed archive
	if cfg.Archive.Enabled {
		archive, err := newFeedArchive(ctx, &cfg.Archive, log)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, closeoutapp.WithFeedArchive(archive))
	}

	return &cli.Services{
		Sync:    closeoutapp.NewSyncService(vendor, ledgerRepo, opts...),
		Records: closeoutapp.NewLedgerService(ledgerRepo, time.Now, log),
	}, closeAll, nil
}

// newFeedArchive prefers the bucket and falls back to the local directory
func newFeedArchive(ctx context.Context, cfg *config.ArchiveConfig, log *zap.Logger) (closeoutapp.FeedArchive, error) {
	if cfg.Bucket == "" {
		log.Info("Archiving vendor feeds to local directory", zap.String("dir", cfg.LocalDir))
		return storage.NewDirFeedArchive(cfg.LocalDir)
	}

	archive, err := storage.NewS3FeedArchive(cfg, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create feed archive: %w", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		// Archive failures never fail a sync; PutObject will surface the problem per feed
		log.Warn("Failed to ensure archive bucket", zap.String("bucket", archive.GetBucket()), zap.Error(err))
	}
	log.Info("Archiving vendor feeds to bucket", zap.String("bucket", archive.GetBucket()))
	return archive, nil
}
