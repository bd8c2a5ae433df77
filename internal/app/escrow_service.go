package app

import (
	"context"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"go.uber.org/zap"
)

type EscrowRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetCommissionForUpdate(ctx context.Context, id string) (domain.Commission, error)
	ListOrderCommissionsForUpdate(ctx context.Context, orderID string) ([]domain.Commission, error)
	// MarkReleased moves a HELD commission to RELEASED. When dueBy is set the
	// hold must have elapsed by then. It reports false when no row matched.
	MarkReleased(ctx context.Context, id string, at time.Time, by string, dueBy *time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id string, at time.Time, reason string) (bool, error)
	// ListDueHolds pages HELD commissions by id. A nil dueBy ignores holdUntil.
	ListDueHolds(ctx context.Context, dueBy *time.Time, afterID string, limit int) ([]domain.Commission, error)
}

// ReleaseMode tells release whether the hold period must have elapsed.
type ReleaseMode int

const (
	// ReleaseScheduled honours holdUntil.
	ReleaseScheduled ReleaseMode = iota
	// ReleaseManual forces the release; the caller authorizes it.
	ReleaseManual
)

func (m ReleaseMode) trigger() string {
	if m == ReleaseManual {
		return "manual"
	}
	return "scheduled"
}

// EscrowService decides when held commissions become payable.
type EscrowService struct {
	repo     EscrowRepository
	settings SettingsProvider
	clock    clock.Clock
	deps     serviceDeps
}

func NewEscrowService(repo EscrowRepository, settings SettingsProvider, clk clock.Clock, opts ...Option) *EscrowService {
	return &EscrowService{
		repo:     repo,
		settings: settings,
		clock:    clk,
		deps:     newServiceDeps("escrow", opts),
	}
}

type ReleaseInput struct {
	CommissionID string
	Mode         ReleaseMode
	Actor        string
}

// Release moves one HELD commission to RELEASED.
func (s *EscrowService) Release(ctx context.Context, in ReleaseInput) (domain.Commission, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return domain.Commission{}, err
	}
	actor := in.Actor
	if actor == "" {
		actor = domain.ReleasedBySweep
	}
	now := s.clock.Now()

	var released domain.Commission
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		c, err := s.repo.GetCommissionForUpdate(txCtx, in.CommissionID)
		if err != nil {
			return err
		}
		switch c.Status {
		case domain.CommissionHeld:
		case domain.CommissionReleased, domain.CommissionPaid:
			return domain.CommissionStateError(c, "release", domain.ErrAlreadyReleased, "")
		default:
			return domain.CommissionStateError(c, "release", domain.ErrInvalidStateTransition, "Refunded commissions cannot be released")
		}
		if in.Mode == ReleaseScheduled && settings.EscrowEnabled && !c.DueAt(now) {
			return domain.CommissionStateError(c, "release", domain.ErrNotYetEligible,
				"Commission is held until "+c.HoldUntil.Format(time.RFC3339))
		}

		ok, err := s.repo.MarkReleased(txCtx, c.ID, now, actor, nil)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrencyConflict
		}
		c.Status = domain.CommissionReleased
		c.ReleasedAt = &now
		c.ReleasedBy = actor
		c.UpdatedAt = now
		released = c
		return nil
	})
	if err != nil {
		s.deps.metrics.IncEscrow(in.Mode.trigger(), "rejected")
		return domain.Commission{}, err
	}

	s.deps.metrics.IncEscrow(in.Mode.trigger(), "released")
	s.deps.log.Info("commission released",
		zap.String("commission_id", released.ID),
		zap.String("released_by", actor),
		zap.String("trigger", in.Mode.trigger()),
	)
	s.deps.publish(ctx, domain.CommissionEvent(newUUID(), domain.EventCommissionReleased, released, now))
	return released, nil
}

// Refund moves a HELD commission to REFUNDED. Released or paid funds cannot
// be refunded here.
func (s *EscrowService) Refund(ctx context.Context, commissionID, reason string) (domain.Commission, error) {
	now := s.clock.Now()

	var refunded domain.Commission
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		c, err := s.repo.GetCommissionForUpdate(txCtx, commissionID)
		if err != nil {
			return err
		}
		if err := refundable(c); err != nil {
			return err
		}
		ok, err := s.repo.MarkRefunded(txCtx, c.ID, now, reason)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrencyConflict
		}
		refunded = markRefunded(c, reason, now)
		return nil
	})
	if err != nil {
		s.deps.metrics.IncEscrow("refund", "rejected")
		return domain.Commission{}, err
	}

	s.deps.metrics.IncEscrow("refund", "refunded")
	s.deps.publish(ctx, domain.CommissionEvent(newUUID(), domain.EventCommissionRefunded, refunded, now))
	return refunded, nil
}

type RefundOrderResult struct {
	Refunded  []domain.Commission
	Untouched []domain.Commission
}

// RefundOrder refunds every HELD commission of a cancelled order. Commissions
// already released or paid are returned untouched for upstream reversal.
func (s *EscrowService) RefundOrder(ctx context.Context, orderID, reason string) (RefundOrderResult, error) {
	now := s.clock.Now()

	var result RefundOrderResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		result = RefundOrderResult{}
		commissions, err := s.repo.ListOrderCommissionsForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if len(commissions) == 0 {
			return domain.ErrCommissionNotFound
		}
		for _, c := range commissions {
			if c.Status != domain.CommissionHeld {
				result.Untouched = append(result.Untouched, c)
				continue
			}
			ok, err := s.repo.MarkRefunded(txCtx, c.ID, now, reason)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrConcurrencyConflict
			}
			result.Refunded = append(result.Refunded, markRefunded(c, reason, now))
		}
		return nil
	})
	if err != nil {
		return RefundOrderResult{}, err
	}

	s.deps.metrics.AddEscrow("refund", "refunded", len(result.Refunded))
	for _, c := range result.Refunded {
		s.deps.publish(ctx, domain.CommissionEvent(newUUID(), domain.EventCommissionRefunded, c, now))
	}
	return result, nil
}

type SweepResult struct {
	Processed int
	Released  int
	Skipped   int
	Failed    int
}

// ReleaseEligible releases every HELD commission whose hold elapsed by asOf.
// Each release is its own conditional update, so concurrent sweeps skip rows
// another sweep already released. Failures are logged and the sweep goes on.
func (s *EscrowService) ReleaseEligible(ctx context.Context, asOf time.Time) (SweepResult, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var dueBy *time.Time
	if settings.EscrowEnabled {
		dueBy = &asOf
	}

	start := s.clock.Now()
	var result SweepResult
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := s.repo.ListDueHolds(ctx, dueBy, afterID, s.deps.batchSize)
		if err != nil {
			return result, err
		}
		for _, c := range batch {
			result.Processed++
			now := s.clock.Now()
			ok, err := s.repo.MarkReleased(ctx, c.ID, now, domain.ReleasedBySweep, dueBy)
			if err != nil {
				result.Failed++
				s.deps.log.Warn("escrow release failed",
					zap.String("commission_id", c.ID),
					zap.Error(err),
				)
				continue
			}
			if !ok {
				result.Skipped++
				continue
			}
			result.Released++
			c.Status = domain.CommissionReleased
			c.ReleasedAt = &now
			c.ReleasedBy = domain.ReleasedBySweep
			s.deps.publish(ctx, domain.CommissionEvent(newUUID(), domain.EventCommissionReleased, c, now))
		}
		if len(batch) < s.deps.batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	s.deps.metrics.AddEscrow("sweep", "released", result.Released)
	s.deps.metrics.AddEscrow("sweep", "skipped", result.Skipped)
	s.deps.metrics.AddEscrow("sweep", "failed", result.Failed)
	s.deps.metrics.ObserveSweep(s.clock.Now().Sub(start))
	if result.Processed > 0 {
		s.deps.log.Info("escrow sweep finished",
			zap.Time("as_of", asOf),
			zap.Int("processed", result.Processed),
			zap.Int("released", result.Released),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func refundable(c domain.Commission) error {
	switch c.Status {
	case domain.CommissionHeld:
		return nil
	case domain.CommissionReleased, domain.CommissionPaid:
		return domain.CommissionStateError(c, "refund", domain.ErrAlreadyReleased, "")
	default:
		return domain.CommissionStateError(c, "refund", domain.ErrInvalidStateTransition, "Commission is already refunded")
	}
}

func markRefunded(c domain.Commission, reason string, at time.Time) domain.Commission {
	c.Status = domain.CommissionRefunded
	c.RefundedAt = &at
	c.RefundReason = reason
	c.UpdatedAt = at
	return c
}
