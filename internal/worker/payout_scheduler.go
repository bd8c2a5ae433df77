package worker

import (
	"context"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/lock"
	"go.uber.org/zap"
)

const payoutSchedulerLockKey = "payout-scheduler"

type ScheduledAggregator interface {
	RunScheduled(ctx context.Context, start, end time.Time) (app.ScheduledRunResult, error)
}

// PayoutScheduler creates payouts for the trailing period on every tick.
type PayoutScheduler struct {
	aggregator ScheduledAggregator
	clock      clock.Clock
	period     time.Duration
	log        *zap.Logger
	runner     runner
}

func NewPayoutScheduler(aggregator ScheduledAggregator, locker lock.Locker, clk clock.Clock, log *zap.Logger, periodDays int, cfg Config) *PayoutScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if periodDays <= 0 {
		periodDays = 7
	}
	s := &PayoutScheduler{
		aggregator: aggregator,
		clock:      clk,
		period:     time.Duration(periodDays) * 24 * time.Hour,
		log:        log.Named("payout.scheduler"),
	}
	s.runner = runner{
		key:    payoutSchedulerLockKey,
		cfg:    cfg.withDefaults(),
		locker: locker,
		log:    s.log,
		job:    s.schedule,
	}
	return s
}

func (s *PayoutScheduler) RunForever(ctx context.Context) {
	s.runner.runForever(ctx)
}

func (s *PayoutScheduler) RunOnce(ctx context.Context) (bool, error) {
	return s.runner.runOnce(ctx)
}

// Window returns the period label of the next run: [now - period, now).
// The run also pays out older commissions still unattached.
func (s *PayoutScheduler) Window() (time.Time, time.Time) {
	end := s.clock.Now()
	return end.Add(-s.period), end
}

func (s *PayoutScheduler) schedule(ctx context.Context) error {
	start, end := s.Window()
	result, err := s.aggregator.RunScheduled(ctx, start, end)
	if err != nil {
		return err
	}
	s.log.Info("scheduled payouts run",
		zap.Time("period_start", start),
		zap.Time("period_end", end),
		zap.Int("payees", result.Payees),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}
