package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "yt-hotness"

// Config configures the meter provider.
type Config struct {
	Enabled  bool
	Endpoint string
}

var newExporter = func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
}

// InitProvider registers a global meter provider. The returned shutdown func
// flushes pending points and is safe to call when metrics are disabled.
func InitProvider(ctx context.Context, cfg Config) (metric.MeterProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg.Endpoint)
	if err != nil {
		return nil, nil, err
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider, provider.Shutdown, nil
}

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	snapshotsSaved metric.Int64Counter
	batchesFailed  metric.Int64Counter
	runsSkipped    metric.Int64Counter
	catalogSynced  metric.Int64Counter
	runDuration    metric.Float64Histogram
}

func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	snapshotsSaved, err := meter.Int64Counter("snapshots_saved_total",
		metric.WithDescription("Attempted snapshot inserts in committed batches"))
	if err != nil {
		return nil, err
	}
	batchesFailed, err := meter.Int64Counter("batches_failed_total",
		metric.WithDescription("Collector batches aborted by a provider or write error"))
	if err != nil {
		return nil, err
	}
	runsSkipped, err := meter.Int64Counter("runs_skipped_total",
		metric.WithDescription("Scheduled runs skipped because a previous run was still active"))
	if err != nil {
		return nil, err
	}
	catalogSynced, err := meter.Int64Counter("catalog_videos_synced_total")
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("collector_run_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		snapshotsSaved: snapshotsSaved,
		batchesFailed:  batchesFailed,
		runsSkipped:    runsSkipped,
		catalogSynced:  catalogSynced,
		runDuration:    runDuration,
	}, nil
}

func (m *Metrics) RecordCollectorRun(ctx context.Context, saved int, d time.Duration) {
	if m == nil {
		return
	}
	m.snapshotsSaved.Add(ctx, int64(saved))
	m.runDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) RecordBatchFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesFailed.Add(ctx, 1)
}

func (m *Metrics) RecordSkippedRun(ctx context.Context, job string) {
	if m == nil {
		return
	}
	m.runsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("job", job)))
}

func (m *Metrics) RecordCatalogSync(ctx context.Context, categoryID, videos int) {
	if m == nil {
		return
	}
	m.catalogSynced.Add(ctx, int64(videos),
		metric.WithAttributes(attribute.String("category_id", strconv.Itoa(categoryID))))
}
