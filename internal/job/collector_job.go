package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SnapshotRunner interface {
	RunOnce(ctx context.Context) (domain.CollectResult, error)
}

// CollectorJob triggers the snapshot collector on wall-clock boundaries.
type CollectorJob struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	guard    *Guard
	runner   SnapshotRunner
	interval time.Duration
	loc      *time.Location

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
	wg    sync.WaitGroup
}

func NewCollectorJob(
	tracer trace.Tracer,
	logger *zap.Logger,
	guard *Guard,
	runner SnapshotRunner,
	interval time.Duration,
	loc *time.Location,
) *CollectorJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CollectorJob{
		tracer:   tracer,
		logger:   logger,
		guard:    guard,
		runner:   runner,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		after:    time.After,
	}
}

// Start runs once immediately, then at every aligned boundary until ctx is
// cancelled. Ticks fire independently of run duration; a tick that lands on
// an active run is skipped by the guard. Start returns after in-flight runs finish.
func (j *CollectorJob) Start(ctx context.Context) {
	j.logger.Info("collector scheduled",
		zap.Duration("interval", j.interval),
		zap.String("timezone", j.loc.String()),
	)
	j.fire(ctx)

	for {
		next := NextAligned(j.now(), j.interval, j.loc)
		select {
		case <-ctx.Done():
			j.wg.Wait()
			j.logger.Info("collector stopped")
			return
		case <-j.after(next.Sub(j.now())):
			j.fire(ctx)
		}
	}
}

func (j *CollectorJob) fire(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.Trigger(ctx)
	}()
}

// Trigger performs one guarded run and reports ErrRunInProgress on overlap.
func (j *CollectorJob) Trigger(ctx context.Context) (domain.CollectResult, error) {
	ctx, span := j.tracer.Start(ctx, "collector-job.trigger")
	defer span.End()

	var result domain.CollectResult
	err := j.guard.Run(ctx, func(ctx context.Context) error {
		var runErr error
		result, runErr = j.runner.RunOnce(ctx)
		return runErr
	})
	if err != nil && !errors.Is(err, ErrRunInProgress) {
		j.logger.Error("poll error", zap.Error(err))
	}
	return result, err
}
