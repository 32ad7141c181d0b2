package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yt-hotness/internal/domain"
	"yt-hotness/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultMaxVideos  = 200
	DefaultBatchSize  = 50
	DefaultBatchDelay = 400 * time.Millisecond
)

type StatsFetcher interface {
	FetchStatsBatch(ctx context.Context, ids []string) ([]domain.VideoStats, error)
}

type SnapshotStore interface {
	ListTrackedVideoIDs(ctx context.Context, limit int) ([]string, error)
	InsertSnapshots(ctx context.Context, capturedAt time.Time, stats []domain.VideoStats) (int, error)
}

type CollectorOptions struct {
	MaxVideos  int
	BatchSize  int
	BatchDelay time.Duration
}

func (o CollectorOptions) withDefaults() CollectorOptions {
	if o.MaxVideos <= 0 {
		o.MaxVideos = DefaultMaxVideos
	}
	if o.BatchSize <= 0 || o.BatchSize > DefaultBatchSize {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	return o
}

// SnapshotCollector records one snapshot generation for the tracked catalog.
type SnapshotCollector struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	provider StatsFetcher
	store    SnapshotStore
	metrics  *metrics.Metrics
	opts     CollectorOptions

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration) error
}

func NewSnapshotCollector(
	tracer trace.Tracer,
	logger *zap.Logger,
	provider StatsFetcher,
	store SnapshotStore,
	m *metrics.Metrics,
	opts CollectorOptions,
) *SnapshotCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCollector{
		tracer:   tracer,
		logger:   logger,
		provider: provider,
		store:    store,
		metrics:  m,
		opts:     opts.withDefaults(),
		now:      time.Now,
		pause:    sleepContext,
	}
}

// RunOnce polls every tracked video once. Batches are processed strictly in
// order with a pause between them; a failed batch is reported in the joined
// error but does not stop the remaining ones. Cancelling ctx lets the batch in
// flight finish and write its rows, then stops before the next one.
func (c *SnapshotCollector) RunOnce(ctx context.Context) (domain.CollectResult, error) {
	ctx, span := c.tracer.Start(ctx, "collector.run-once")
	defer span.End()

	started := c.now()
	result := domain.CollectResult{RunTimestamp: domain.RunTimestamp(started)}

	ids, err := c.store.ListTrackedVideoIDs(ctx, c.opts.MaxVideos)
	if err != nil {
		return result, fmt.Errorf("list tracked videos: %w", err)
	}
	result.Tracked = len(ids)
	if len(ids) == 0 {
		c.logger.Info("no videos to poll")
		return result, nil
	}

	batches := Partition(ids, c.opts.BatchSize)
	result.Batches = len(batches)

	batchCtx := context.WithoutCancel(ctx)
	var errs []error
	for i, batch := range batches {
		saved, err := c.collectBatch(batchCtx, result.RunTimestamp, batch)
		if err != nil {
			result.FailedBatches++
			c.metrics.RecordBatchFailure(ctx)
			c.logger.Warn("snapshot batch failed",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("ids", len(batch)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err))
		}
		result.Saved += saved

		if i == len(batches)-1 {
			break
		}
		if err := c.pause(ctx, c.opts.BatchDelay); err != nil {
			errs = append(errs, fmt.Errorf("stopped after batch %d/%d: %w", i+1, len(batches), err))
			break
		}
	}

	span.SetAttributes(
		attribute.Int("saved", result.Saved),
		attribute.Int("failed_batches", result.FailedBatches),
	)
	c.metrics.RecordCollectorRun(ctx, result.Saved, c.now().Sub(started))
	c.logger.Info("snapshots saved",
		zap.Int("saved", result.Saved),
		zap.Time("captured_at", result.RunTimestamp),
		zap.Int("batches", result.Batches),
		zap.Int("failed_batches", result.FailedBatches),
	)
	return result, errors.Join(errs...)
}

func (c *SnapshotCollector) collectBatch(ctx context.Context, capturedAt time.Time, ids []string) (int, error) {
	stats, err := c.provider.FetchStatsBatch(ctx, ids)
	if err != nil {
		return 0, err
	}
	return c.store.InsertSnapshots(ctx, capturedAt, stats)
}

// Partition splits ids into consecutive chunks of at most size, preserving order.
func Partition(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
