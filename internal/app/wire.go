package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/rohidaprem/crypto-order-book/internal/blob/s3"
	"github.com/rohidaprem/crypto-order-book/internal/book"
	rediscache "github.com/rohidaprem/crypto-order-book/internal/cache/redis"
	"github.com/rohidaprem/crypto-order-book/internal/config"
	"github.com/rohidaprem/crypto-order-book/internal/distribution"
	"github.com/rohidaprem/crypto-order-book/internal/domain"
	"github.com/rohidaprem/crypto-order-book/internal/platform/binance"
	"github.com/rohidaprem/crypto-order-book/internal/scheduler"
	"github.com/rohidaprem/crypto-order-book/internal/service"
	"github.com/rohidaprem/crypto-order-book/internal/simulator"
	"github.com/rohidaprem/crypto-order-book/internal/store/postgres"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Core
	Store   *book.Store
	Channel *distribution.Channel

	// Redis-backed infrastructure (always wired).
	Mirror      domain.BookMirror
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	DeltaRelay  domain.DeltaPublisher

	// Refresh pipeline (full and refresh modes).
	Source    domain.QuoteSource
	Scheduler *scheduler.Scheduler

	// Ledger and execution (full and server modes).
	Ledger     domain.ExecutionStore
	Executions *service.ExecutionService

	// Archival (full mode, when enabled).
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver
}

// needsPostgres returns true for modes that persist executions.
func needsPostgres(mode string) bool {
	return mode == "full" || mode == "server"
}

// needsScheduler returns true for modes that run the refresh pipeline.
func needsScheduler(mode string) bool {
	return mode == "full" || mode == "refresh"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Store: book.NewStore(),
	}
	deps.Channel = distribution.NewChannel(distribution.Config{
		MaxSubscribers: cfg.Distribution.MaxSubscribers,
		QueueSize:      cfg.Distribution.QueueSize,
		TopLevels:      cfg.Book.TopLevels,
	}, deps.Store, logger)

	// --- Redis ---
	redisClient, err := rediscache.New(ctx, rediscache.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	mirror := rediscache.NewBookMirror(redisClient)
	deps.Mirror = mirror
	deps.SignalBus = rediscache.NewSignalBus(redisClient)
	deps.RateLimiter = rediscache.NewRateLimiter(redisClient)
	deps.DeltaRelay = rediscache.NewDeltaRelay(deps.SignalBus)

	// --- PostgreSQL (only for modes that persist executions) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Ledger = postgres.NewExecutionStore(pgClient.Pool())
	}

	// --- Refresh pipeline ---
	if needsScheduler(cfg.Mode) {
		deps.Source = binance.NewClient(binance.Config{
			BaseURL:           cfg.Exchange.BaseURL,
			Timeout:           cfg.Exchange.Timeout.Duration,
			RetryMaxAttempts:  cfg.Exchange.RetryMaxAttempts,
			RetryInitialDelay: cfg.Exchange.RetryInitialDelay.Duration,
			RetryMultiplier:   cfg.Exchange.RetryMultiplier,
		}, logger)

		// Publish order matters only for logging; each publisher is
		// independent and failures are contained per publisher.
		publishers := []domain.DeltaPublisher{deps.Channel, mirror, deps.DeltaRelay}

		deps.Scheduler = scheduler.New(scheduler.Config{
			Symbol:    cfg.Symbol,
			Depth:     cfg.Book.Depth,
			Interval:  cfg.Scheduler.Interval.Duration,
			TopLevels: cfg.Book.TopLevels,
		}, deps.Source, deps.Store, publishers, nil, logger)
	}

	// --- Execution service ---
	if needsPostgres(cfg.Mode) {
		deps.Executions = service.NewExecutionService(
			deps.Store,
			simulator.Config{
				PricePrecision:    int32(cfg.Book.PricePrecision),
				QuantityPrecision: int32(cfg.Book.QuantityPrecision),
			},
			deps.Ledger,
			deps.SignalBus,
			logger,
		)
	}

	// --- S3 blob storage + archiver ---
	if cfg.Mode == "full" && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)

		retention := time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			postgresArchiveStore(deps.Ledger),
			retention,
			cfg.Archive.Interval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}

// postgresArchiveStore narrows the full ledger interface to the archive view.
func postgresArchiveStore(ledger domain.ExecutionStore) s3blob.ExecutionArchiveStore {
	return ledger
}
