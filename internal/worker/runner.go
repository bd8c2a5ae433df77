package worker

import (
	"context"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/lock"
	"go.uber.org/zap"
)

// runner executes job once per interval while holding the lease named key.
type runner struct {
	key    string
	cfg    Config
	locker lock.Locker
	log    *zap.Logger
	job    func(ctx context.Context) error
}

func (r runner) runForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.runOnce(ctx); err != nil {
			r.log.Warn("run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce reports whether the job ran. It does not run when another replica
// holds the lease.
func (r runner) runOnce(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	lease, ok, err := r.locker.TryAcquire(ctx, r.key, r.cfg.LockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		r.log.Debug("lease held elsewhere, skipping run")
		return false, nil
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			r.log.Warn("release lease failed", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()
	return true, r.job(runCtx)
}
