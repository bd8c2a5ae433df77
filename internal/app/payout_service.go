package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AvailableQuery selects RELEASED commissions not attached to any payout,
// captured in [Start, End). A zero Start selects everything captured before
// End.
type AvailableQuery struct {
	PayeeID   string
	PayeeType domain.PayeeType
	Currency  string // empty for every currency
	Start     time.Time
	End       time.Time
	ForUpdate bool
}

type PayoutRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetPayee(ctx context.Context, payeeType domain.PayeeType, id string) (domain.Payee, error)
	// LockPayeeCurrency serializes payout creation per payee and currency
	// until the surrounding transaction ends.
	LockPayeeCurrency(ctx context.Context, payeeType domain.PayeeType, payeeID, currency string) error
	GetCommissionsForUpdate(ctx context.Context, ids []string) ([]domain.Commission, error)
	ListAvailableCommissions(ctx context.Context, q AvailableQuery) ([]domain.Commission, error)
	CreatePayout(ctx context.Context, p domain.Payout) error
	// AttachCommissions links unattached RELEASED commissions to the payout
	// and records the attempt. It returns how many were attached.
	AttachCommissions(ctx context.Context, payoutID string, commissions []domain.Commission, at time.Time) (int64, error)
	GetPayoutForUpdate(ctx context.Context, id string) (domain.Payout, error)
	// UpdatePayout persists p if its stored status is still from.
	UpdatePayout(ctx context.Context, p domain.Payout, from domain.PayoutStatus) error
	MarkCommissionsPaid(ctx context.Context, payoutID string, at time.Time) (int64, error)
	DetachCommissions(ctx context.Context, payoutID string, at time.Time) (int64, error)
}

// PayoutService drives payouts through their lifecycle.
type PayoutService struct {
	repo  PayoutRepository
	clock clock.Clock
	deps  serviceDeps
}

func NewPayoutService(repo PayoutRepository, clk clock.Clock, opts ...Option) *PayoutService {
	return &PayoutService{
		repo:  repo,
		clock: clk,
		deps:  newServiceDeps("payout", opts),
	}
}

type CreatePayoutInput struct {
	PayeeID     string
	PayeeType   domain.PayeeType
	Amount      decimal.Decimal
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	// CommissionIDs lists the commissions to attach. When nil, the available
	// commissions of the payee in the period are used.
	CommissionIDs []string
	// CommissionCount, when positive, must match the attached count.
	CommissionCount int
	// Backlog admits commissions captured before PeriodStart. The period then
	// only labels the payout.
	Backlog bool
	Actor   string
}

// Create creates a PENDING payout and attaches its commissions atomically.
func (s *PayoutService) Create(ctx context.Context, in CreatePayoutInput) (domain.Payout, error) {
	in.PayeeID = strings.TrimSpace(in.PayeeID)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = domain.BaseCurrency
	}
	if in.PayeeID == "" {
		return domain.Payout{}, domain.ErrInvalidID
	}
	if !in.PayeeType.Valid() {
		return domain.Payout{}, domain.ErrInvalidPayeeType
	}
	if in.PeriodStart.IsZero() || !in.PeriodStart.Before(in.PeriodEnd) {
		return domain.Payout{}, domain.ErrInvalidPeriod
	}
	if in.CommissionIDs != nil && len(in.CommissionIDs) == 0 {
		return domain.Payout{}, domain.ErrEmptyBatch
	}
	if !in.Amount.IsPositive() {
		return domain.Payout{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var payout domain.Payout
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetPayee(txCtx, in.PayeeType, in.PayeeID); err != nil {
			return err
		}
		if err := s.repo.LockPayeeCurrency(txCtx, in.PayeeType, in.PayeeID, in.Currency); err != nil {
			return err
		}

		commissions, err := s.loadCommissions(txCtx, in)
		if err != nil {
			return err
		}
		if len(commissions) == 0 {
			return domain.ErrEmptyBatch
		}
		if err := checkAttachable(commissions, in); err != nil {
			return err
		}

		total := decimal.Zero
		for _, c := range commissions {
			total = total.Add(c.NetAmount)
		}
		if !total.Equal(in.Amount) {
			return fmt.Errorf("%w: amount %s, commissions total %s", domain.ErrAmountMismatch, in.Amount, total)
		}
		if in.CommissionCount > 0 && in.CommissionCount != len(commissions) {
			return fmt.Errorf("%w: commission count %d, attached %d", domain.ErrAmountMismatch, in.CommissionCount, len(commissions))
		}

		payout = domain.Payout{
			ID:              newUUID(),
			PayeeID:         in.PayeeID,
			PayeeType:       in.PayeeType,
			Amount:          total,
			Currency:        in.Currency,
			PeriodStart:     in.PeriodStart.UTC(),
			PeriodEnd:       in.PeriodEnd.UTC(),
			CommissionCount: len(commissions),
			Status:          domain.PayoutPending,
			CreatedBy:       in.Actor,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.CreatePayout(txCtx, payout); err != nil {
			return err
		}
		attached, err := s.repo.AttachCommissions(txCtx, payout.ID, commissions, now)
		if err != nil {
			return err
		}
		if attached != int64(len(commissions)) {
			return fmt.Errorf("%w: attached %d of %d commissions", domain.ErrConcurrencyConflict, attached, len(commissions))
		}
		return nil
	})
	if err != nil {
		s.observeTransition("create", err)
		return domain.Payout{}, err
	}

	s.observeTransition("create", nil)
	s.deps.log.Info("payout created",
		zap.String("payout_id", payout.ID),
		zap.String("payee_id", payout.PayeeID),
		zap.String("amount", payout.Amount.String()),
		zap.String("currency", payout.Currency),
		zap.Int("commission_count", payout.CommissionCount),
	)
	s.deps.publish(ctx, domain.PayoutEvent(newUUID(), domain.EventPayoutCreated, payout, in.Actor, now))
	return payout, nil
}

func (s *PayoutService) loadCommissions(ctx context.Context, in CreatePayoutInput) ([]domain.Commission, error) {
	if in.CommissionIDs == nil {
		start := in.PeriodStart
		if in.Backlog {
			start = time.Time{}
		}
		return s.repo.ListAvailableCommissions(ctx, AvailableQuery{
			PayeeID:   in.PayeeID,
			PayeeType: in.PayeeType,
			Currency:  in.Currency,
			Start:     start,
			End:       in.PeriodEnd,
			ForUpdate: true,
		})
	}
	ids := dedupe(in.CommissionIDs)
	commissions, err := s.repo.GetCommissionsForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(commissions) != len(ids) {
		return nil, domain.ErrCommissionNotFound
	}
	return commissions, nil
}

func checkAttachable(commissions []domain.Commission, in CreatePayoutInput) error {
	for _, c := range commissions {
		if c.PayeeID != in.PayeeID || c.PayeeType != in.PayeeType {
			return fmt.Errorf("%w: commission %s belongs to another payee", domain.ErrAmountMismatch, c.ID)
		}
		if c.Currency != in.Currency {
			return fmt.Errorf("%w: commission %s is in %s, payout in %s", domain.ErrAmountMismatch, c.ID, c.Currency, in.Currency)
		}
		if (!in.Backlog && c.CapturedAt.Before(in.PeriodStart)) || !c.CapturedAt.Before(in.PeriodEnd) {
			return fmt.Errorf("%w: commission %s captured outside the payout period", domain.ErrInvalidPeriod, c.ID)
		}
		if c.Attached() {
			return fmt.Errorf("%w: commission %s is attached to payout %s", domain.ErrConcurrencyConflict, c.ID, c.PayoutID)
		}
		switch c.Status {
		case domain.CommissionReleased:
		case domain.CommissionHeld:
			return domain.CommissionStateError(c, "attach", domain.ErrNotYetEligible, "")
		default:
			return domain.CommissionStateError(c, "attach", domain.ErrInvalidStateTransition, "")
		}
	}
	return nil
}

type ProcessPayoutInput struct {
	PayoutID         string
	PaymentMethod    string
	PaymentReference string
	Notes            string
	Actor            string
}

// Process moves a PENDING payout to PROCESSING.
func (s *PayoutService) Process(ctx context.Context, in ProcessPayoutInput) (domain.Payout, error) {
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return domain.Payout{}, domain.ErrPaymentMethodRequired
	}
	return s.transition(ctx, "process", in.PayoutID, in.Actor, domain.EventPayoutProcessing,
		func(txCtx context.Context, p *domain.Payout, now time.Time) error {
			return p.Process(in.PaymentMethod, in.PaymentReference, in.Notes, in.Actor, now)
		})
}

// Complete moves a PROCESSING payout to COMPLETED and marks its commissions
// PAID.
func (s *PayoutService) Complete(ctx context.Context, payoutID, actor string) (domain.Payout, error) {
	return s.transition(ctx, "complete", payoutID, actor, domain.EventPayoutCompleted,
		func(txCtx context.Context, p *domain.Payout, now time.Time) error {
			if err := p.Complete(now); err != nil {
				return err
			}
			paid, err := s.repo.MarkCommissionsPaid(txCtx, p.ID, now)
			if err != nil {
				return err
			}
			if paid != int64(p.CommissionCount) {
				return fmt.Errorf("payout %s: marked %d of %d commissions paid", p.ID, paid, p.CommissionCount)
			}
			return nil
		})
}

// Cancel moves a PENDING or PROCESSING payout to CANCELLED and returns its
// commissions to the pool of available RELEASED commissions.
func (s *PayoutService) Cancel(ctx context.Context, payoutID, reason, actor string) (domain.Payout, error) {
	return s.transition(ctx, "cancel", payoutID, actor, domain.EventPayoutCancelled,
		func(txCtx context.Context, p *domain.Payout, now time.Time) error {
			if err := p.Cancel(reason, now); err != nil {
				return err
			}
			_, err := s.repo.DetachCommissions(txCtx, p.ID, now)
			return err
		})
}

// Fail moves a PROCESSING payout to FAILED. Its commissions stay attached.
func (s *PayoutService) Fail(ctx context.Context, payoutID, reason, actor string) (domain.Payout, error) {
	return s.transition(ctx, "fail", payoutID, actor, domain.EventPayoutFailed,
		func(txCtx context.Context, p *domain.Payout, now time.Time) error {
			return p.Fail(reason, now)
		})
}

// ReleaseCommissions detaches the commissions of a FAILED payout so a new
// payout can be created for them.
func (s *PayoutService) ReleaseCommissions(ctx context.Context, payoutID, actor string) (domain.Payout, error) {
	return s.transition(ctx, "release_commissions", payoutID, actor, "",
		func(txCtx context.Context, p *domain.Payout, now time.Time) error {
			if err := p.ReleaseCommissions(now); err != nil {
				return err
			}
			_, err := s.repo.DetachCommissions(txCtx, p.ID, now)
			return err
		})
}

func (s *PayoutService) transition(
	ctx context.Context,
	action, payoutID, actor, eventType string,
	apply func(txCtx context.Context, p *domain.Payout, now time.Time) error,
) (domain.Payout, error) {
	now := s.clock.Now()
	var updated domain.Payout
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetPayoutForUpdate(txCtx, payoutID)
		if err != nil {
			return err
		}
		from := p.Status
		if err := apply(txCtx, &p, now); err != nil {
			return err
		}
		if err := s.repo.UpdatePayout(txCtx, p, from); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		s.observeTransition(action, err)
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			s.deps.log.Info("payout transition rejected",
				zap.String("payout_id", payoutID),
				zap.String("action", action),
				zap.String("status", stateErr.Status),
			)
		}
		return domain.Payout{}, err
	}

	s.observeTransition(action, nil)
	s.deps.log.Info("payout transitioned",
		zap.String("payout_id", updated.ID),
		zap.String("action", action),
		zap.String("status", string(updated.Status)),
		zap.String("actor", actor),
	)
	if eventType != "" {
		s.deps.publish(ctx, domain.PayoutEvent(newUUID(), eventType, updated, actor, now))
	}
	return updated, nil
}

func (s *PayoutService) observeTransition(action string, err error) {
	switch {
	case err == nil:
		s.deps.metrics.IncPayoutTransition(action, "success")
	case domain.Code(err) != domain.CodeInternal:
		s.deps.metrics.IncPayoutTransition(action, "rejected")
	default:
		s.deps.metrics.IncPayoutTransition(action, "error")
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
