package job

import (
	"context"
	"errors"
	"time"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CatalogRunner interface {
	SyncTrending(ctx context.Context, categoryID int) (domain.CatalogSyncResult, error)
	SyncCategories(ctx context.Context, categories []int) ([]domain.CatalogSyncResult, error)
}

// CatalogJob refreshes the tracked catalog from the trending chart.
type CatalogJob struct {
	tracer     trace.Tracer
	logger     *zap.Logger
	guard      *Guard
	runner     CatalogRunner
	categories []int
	interval   time.Duration
}

func NewCatalogJob(tracer trace.Tracer, logger *zap.Logger, guard *Guard, runner CatalogRunner, categories []int, interval time.Duration) *CatalogJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if len(categories) == 0 {
		categories = []int{domain.DefaultCategoryID}
	}
	return &CatalogJob{
		tracer:     tracer,
		logger:     logger,
		guard:      guard,
		runner:     runner,
		categories: categories,
		interval:   interval,
	}
}

func (j *CatalogJob) Start(ctx context.Context) {
	if j.runner == nil {
		j.logger.Info("catalog job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CatalogJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "catalog-job.run-once")
	defer span.End()

	err := j.guard.Run(ctx, func(ctx context.Context) error {
		results, err := j.runner.SyncCategories(ctx, j.categories)
		total := 0
		for _, r := range results {
			total += r.Upserted
		}
		j.logger.Info("catalog cycle complete", zap.Int("categories", len(results)), zap.Int("videos", total))
		return err
	})
	if err != nil && !errors.Is(err, ErrRunInProgress) {
		j.logger.Error("catalog cycle error", zap.Error(err))
	}
}

// SyncNow runs a single category sync under the job's guard.
func (j *CatalogJob) SyncNow(ctx context.Context, categoryID int) (domain.CatalogSyncResult, error) {
	ctx, span := j.tracer.Start(ctx, "catalog-job.sync-now")
	defer span.End()

	var result domain.CatalogSyncResult
	err := j.guard.Run(ctx, func(ctx context.Context) error {
		var syncErr error
		result, syncErr = j.runner.SyncTrending(ctx, categoryID)
		return syncErr
	})
	return result, err
}
