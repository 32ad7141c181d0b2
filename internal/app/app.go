// Package app wires the shared infrastructure used by every binary.
package app

import (
	"context"
	"errors"
	"fmt"

	"yt-hotness/internal/cache"
	"yt-hotness/internal/config"
	"yt-hotness/internal/db"
	"yt-hotness/internal/job"
	"yt-hotness/internal/metrics"
	"yt-hotness/internal/provider"
	"yt-hotness/internal/repository"
	"yt-hotness/internal/service"
	"yt-hotness/pkg/logging"
	"yt-hotness/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	newLoggerFunc   = logging.New
	initTracerFunc  = tracing.InitTracer
	initMetricsFunc = metrics.InitProvider
	connectDBFunc   = db.Connect
	connectRedis    = cache.Connect
)

// App holds process-wide resources. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Metrics
	Pool    *pgxpool.Pool
	Redis   *redis.Client

	closers []func(context.Context) error
}

// Bootstrap validates cfg and opens logging, telemetry, Postgres and the
// optional Redis client.
func Bootstrap(ctx context.Context, cfg *config.Config, binary string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLoggerFunc(logging.Config{
		ServiceName: "yt-hotness-" + binary,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger}
	a.closers = append(a.closers, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "yt-hotness-" + binary,
	})
	if err != nil {
		return nil, a.fail(fmt.Errorf("initialize tracer: %w", err))
	}
	a.Tracer = tracer
	a.closers = append(a.closers, tp.Shutdown)

	mp, shutdownMetrics, err := initMetricsFunc(ctx, metrics.Config{Enabled: cfg.MetricsEnabled, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		return nil, a.fail(fmt.Errorf("initialize metrics: %w", err))
	}
	a.closers = append(a.closers, shutdownMetrics)
	if a.Metrics, err = metrics.New(mp); err != nil {
		return nil, a.fail(fmt.Errorf("create instruments: %w", err))
	}

	pool, err := connectDBFunc(ctx, cfg.Database)
	if err != nil {
		return nil, a.fail(err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func(context.Context) error {
		if pool != nil {
			pool.Close()
		}
		return nil
	})

	client, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", zap.Error(err))
		client = nil
	}
	if client != nil {
		a.Redis = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}
	return a, nil
}

func (a *App) fail(err error) error {
	return errors.Join(err, a.Close(context.Background()))
}

// Close runs the registered shutdown hooks, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Provider builds the YouTube client from config.
func (a *App) Provider() *provider.YouTubeProvider {
	return provider.NewYouTubeProvider(a.Tracer, a.Config.YouTubeAPIKey, a.Config.YouTubeBaseURL, a.Config.YouTubeRateLimitMin)
}

func (a *App) Collector(p service.StatsFetcher) *service.SnapshotCollector {
	return service.NewSnapshotCollector(
		a.Tracer,
		a.Logger.Named("collector"),
		p,
		repository.NewSnapshotRepository(a.Pool, a.Tracer),
		a.Metrics,
		service.CollectorOptions{
			MaxVideos:  a.Config.PollMaxVideos,
			BatchSize:  a.Config.PollBatchSize,
			BatchDelay: a.Config.PollBatchDelay,
		},
	)
}

func (a *App) Catalog(p service.TrendingFetcher) *service.CatalogSynchronizer {
	return service.NewCatalogSynchronizer(
		a.Tracer,
		a.Logger.Named("catalog"),
		p,
		repository.NewVideoRepository(a.Pool, a.Tracer),
		a.Metrics,
		a.Config.Region,
	)
}

func (a *App) Ranking() *service.RankingService {
	var rc service.RedisClient
	if a.Redis != nil {
		rc = a.Redis
	}
	return service.NewRankingService(a.Tracer, a.Logger.Named("ranking"), repository.NewRankingRepository(a.Pool, a.Tracer), rc)
}

// Guard returns a single-flight guard for name, backed by the Redis run lock
// when Redis is configured.
func (a *App) Guard(name string) *job.Guard {
	var locker job.RunLocker
	if l := cache.NewLocker(a.Redis, a.Config.RunLockTTL); l != nil {
		locker = l
	}
	return job.NewGuard(name, a.Logger, a.Metrics, locker)
}
