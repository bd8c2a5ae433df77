package worker

import (
	"context"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/lock"
	"go.uber.org/zap"
)

const escrowSweepLockKey = "escrow-sweep"

type EscrowReleaser interface {
	ReleaseEligible(ctx context.Context, asOf time.Time) (app.SweepResult, error)
}

// EscrowSweeper releases due escrow holds on every tick.
type EscrowSweeper struct {
	escrow EscrowReleaser
	clock  clock.Clock
	log    *zap.Logger
	runner runner
}

func NewEscrowSweeper(escrow EscrowReleaser, locker lock.Locker, clk clock.Clock, log *zap.Logger, cfg Config) *EscrowSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	s := &EscrowSweeper{
		escrow: escrow,
		clock:  clk,
		log:    log.Named("escrow.sweep"),
	}
	s.runner = runner{
		key:    escrowSweepLockKey,
		cfg:    cfg.withDefaults(),
		locker: locker,
		log:    s.log,
		job:    s.sweep,
	}
	return s
}

func (s *EscrowSweeper) RunForever(ctx context.Context) {
	s.runner.runForever(ctx)
}

// RunOnce performs one sweep if this replica gets the lease.
func (s *EscrowSweeper) RunOnce(ctx context.Context) (bool, error) {
	return s.runner.runOnce(ctx)
}

func (s *EscrowSweeper) sweep(ctx context.Context) error {
	result, err := s.escrow.ReleaseEligible(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		s.log.Warn("escrow sweep had failures",
			zap.Int("failed", result.Failed),
			zap.Int("released", result.Released),
		)
	}
	return nil
}
