package job

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"yt-hotness/internal/metrics"

	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is requested while another one holds the guard.
var ErrRunInProgress = errors.New("previous run still running")

const (
	stateIdle int32 = iota
	stateRunning
)

// RunLocker coordinates runs across processes. *cache.Locker implements it.
type RunLocker interface {
	TryLock(ctx context.Context, key string) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Guard lets at most one run of a named task be active at a time.
type Guard struct {
	name    string
	logger  *zap.Logger
	metrics *metrics.Metrics
	locker  RunLocker
	lockKey string

	state atomic.Int32
}

// NewGuard builds a guard for name. locker may be nil, in which case only
// runs within this process are excluded.
func NewGuard(name string, logger *zap.Logger, m *metrics.Metrics, locker RunLocker) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		name:    name,
		logger:  logger.With(zap.String("job", name)),
		metrics: m,
		locker:  locker,
		lockKey: "yt-hotness:run:" + name,
	}
}

// Running reports whether a run currently holds the guard.
func (g *Guard) Running() bool {
	return g.state.Load() == stateRunning
}

// Run invokes fn unless another run is active. A panic in fn is recovered
// and returned as an error so the guard is always released.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if !g.state.CompareAndSwap(stateIdle, stateRunning) {
		g.skip(ctx)
		return ErrRunInProgress
	}
	defer g.state.Store(stateIdle)

	if g.locker != nil {
		token, ok, lockErr := g.locker.TryLock(ctx, g.lockKey)
		switch {
		case lockErr != nil:
			g.logger.Warn("distributed lock unavailable, continuing with local guard", zap.Error(lockErr))
		case !ok:
			g.skip(ctx)
			return ErrRunInProgress
		default:
			defer func() {
				if relErr := g.locker.Release(context.WithoutCancel(ctx), g.lockKey, token); relErr != nil {
					g.logger.Warn("release distributed lock", zap.Error(relErr))
				}
			}()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("run panicked", zap.Any("panic", r))
			err = fmt.Errorf("%s run panicked: %v", g.name, r)
		}
	}()
	return fn(ctx)
}

func (g *Guard) skip(ctx context.Context) {
	g.logger.Info("skip: previous run still running")
	g.metrics.RecordSkippedRun(ctx, g.name)
}
