package app

import (
	"context"
	"errors"
	"testing"

	"yt-hotness/internal/config"
	"yt-hotness/internal/metrics"
	"yt-hotness/pkg/logging"
	"yt-hotness/pkg/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func validConfig() *config.Config {
	return &config.Config{
		Database:      config.DatabaseConfig{URL: "postgres://localhost/yt", Mode: config.DBModeDisable},
		YouTubeAPIKey: "key",
		Region:        "KR",
	}
}

func stubDeps(t *testing.T, dbErr, redisErr error) *int {
	t.Helper()
	origLogger, origTracer, origMetrics, origDB, origRedis := newLoggerFunc, initTracerFunc, initMetricsFunc, connectDBFunc, connectRedis
	t.Cleanup(func() {
		newLoggerFunc, initTracerFunc, initMetricsFunc, connectDBFunc, connectRedis = origLogger, origTracer, origMetrics, origDB, origRedis
	})

	metricsShutdowns := new(int)
	newLoggerFunc = func(logging.Config) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTracerFunc = func(ctx context.Context, cfg tracing.Config) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	initMetricsFunc = func(ctx context.Context, cfg metrics.Config) (metric.MeterProvider, func(context.Context) error, error) {
		return noop.NewMeterProvider(), func(context.Context) error { *metricsShutdowns++; return nil }, nil
	}
	connectDBFunc = func(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
		return nil, dbErr
	}
	connectRedis = func(ctx context.Context, addr string) (*redis.Client, error) {
		return nil, redisErr
	}
	return metricsShutdowns
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	stubDeps(t, nil, nil)
	if _, err := Bootstrap(context.Background(), &config.Config{}, "test"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBootstrapToleratesMissingRedis(t *testing.T) {
	shutdowns := stubDeps(t, nil, errors.New("connection refused"))

	a, err := Bootstrap(context.Background(), validConfig(), "poller")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Redis != nil || a.Metrics == nil || a.Tracer == nil {
		t.Fatalf("unexpected app: %+v", a)
	}
	if a.Guard("collector") == nil || a.Ranking() == nil || a.Provider() == nil {
		t.Fatal("expected components to be constructed")
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if *shutdowns != 1 {
		t.Fatalf("expected metrics shutdown once, got %d", *shutdowns)
	}
}

func TestBootstrapDatabaseFailureReleasesResources(t *testing.T) {
	shutdowns := stubDeps(t, errors.New("no route to host"), nil)

	if _, err := Bootstrap(context.Background(), validConfig(), "server"); err == nil {
		t.Fatal("expected database error")
	}
	if *shutdowns != 1 {
		t.Fatalf("expected telemetry to be shut down on failure, got %d", *shutdowns)
	}
}
