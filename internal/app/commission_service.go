package app

import (
	"context"
	"strings"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"go.uber.org/zap"
)

type CommissionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindCommissionByOrderPayee(ctx context.Context, orderID, payeeID string) (*domain.Commission, error)
	CreateCommission(ctx context.Context, c domain.Commission) error
}

// CommissionService captures order lines into commissions.
type CommissionService struct {
	repo     CommissionRepository
	settings SettingsProvider
	rates    RateSource
	clock    clock.Clock
	deps     serviceDeps
}

func NewCommissionService(repo CommissionRepository, settings SettingsProvider, rates RateSource, clk clock.Clock, opts ...Option) *CommissionService {
	return &CommissionService{
		repo:     repo,
		settings: settings,
		rates:    rates,
		clock:    clk,
		deps:     newServiceDeps("commission", opts),
	}
}

type CaptureResult struct {
	Commission domain.Commission
	Created    bool
}

// Capture creates the commission for one order line. Capturing the same
// order line again returns the existing commission.
func (s *CommissionService) Capture(ctx context.Context, line domain.OrderLine) (CaptureResult, error) {
	line.OrderID = strings.TrimSpace(line.OrderID)
	line.PayeeID = strings.TrimSpace(line.PayeeID)
	line.Currency = strings.ToUpper(strings.TrimSpace(line.Currency))
	if line.OrderID == "" || line.PayeeID == "" {
		return CaptureResult{}, domain.ErrInvalidID
	}
	if !line.PayeeType.Valid() {
		return CaptureResult{}, domain.ErrInvalidPayeeType
	}

	table, err := s.rates.Table(ctx)
	if err != nil {
		return CaptureResult{}, err
	}
	rate, err := table.Rate(line.Currency)
	if err != nil {
		s.deps.metrics.IncCommissionCaptured(string(line.PayeeType), "rejected")
		return CaptureResult{}, err
	}
	if !line.Amount.IsPositive() || !domain.HasPrecision(line.Amount, rate.DecimalDigits) {
		s.deps.metrics.IncCommissionCaptured(string(line.PayeeType), "rejected")
		return CaptureResult{}, domain.ErrInvalidAmount
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return CaptureResult{}, err
	}
	pct := settings.RateFor(line.PayeeType, line.PayeeID)
	commissionAmount, net, err := domain.SplitAmount(line.Amount, pct, rate.DecimalDigits)
	if err != nil {
		s.deps.metrics.IncCommissionCaptured(string(line.PayeeType), "rejected")
		return CaptureResult{}, err
	}

	now := s.clock.Now()
	capturedAt := line.CapturedAt.UTC()
	if line.CapturedAt.IsZero() {
		capturedAt = now
	}

	commission := domain.Commission{
		ID:               newUUID(),
		OrderID:          line.OrderID,
		PayeeID:          line.PayeeID,
		PayeeType:        line.PayeeType,
		OrderAmount:      line.Amount,
		CommissionAmount: commissionAmount,
		NetAmount:        net,
		Currency:         rate.Code,
		RateApplied:      pct,
		Status:           domain.CommissionHeld,
		HoldUntil:        settings.HoldUntil(capturedAt),
		CapturedAt:       capturedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !settings.EscrowEnabled {
		commission.Status = domain.CommissionReleased
		commission.ReleasedAt = &now
		commission.ReleasedBy = domain.ReleasedByEscrowDisabled
	}

	var result CaptureResult
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindCommissionByOrderPayee(txCtx, line.OrderID, line.PayeeID)
		if err != nil {
			return err
		}
		if existing != nil {
			return sameOrderLine(*existing, line, &result)
		}

		if err := s.repo.CreateCommission(txCtx, commission); err != nil {
			// A concurrent capture of the same line won the insert.
			if err == domain.ErrIdempotencyConflict {
				existing, err := s.repo.FindCommissionByOrderPayee(txCtx, line.OrderID, line.PayeeID)
				if err != nil {
					return err
				}
				if existing != nil {
					return sameOrderLine(*existing, line, &result)
				}
			}
			return err
		}
		result = CaptureResult{Commission: commission, Created: true}
		return nil
	})
	if err != nil {
		return CaptureResult{}, err
	}

	if !result.Created {
		s.deps.metrics.IncCommissionCaptured(string(line.PayeeType), "duplicate")
		return result, nil
	}
	s.deps.metrics.IncCommissionCaptured(string(line.PayeeType), "created")
	s.deps.log.Info("commission captured",
		zap.String("commission_id", commission.ID),
		zap.String("order_id", commission.OrderID),
		zap.String("payee_id", commission.PayeeID),
		zap.String("status", string(commission.Status)),
	)
	s.deps.publish(ctx, domain.CommissionEvent(newUUID(), domain.EventCommissionCaptured, commission, now))
	return result, nil
}

func sameOrderLine(existing domain.Commission, line domain.OrderLine, result *CaptureResult) error {
	if !existing.OrderAmount.Equal(line.Amount) || existing.Currency != line.Currency || existing.PayeeType != line.PayeeType {
		return domain.ErrIdempotencyConflict
	}
	*result = CaptureResult{Commission: existing, Created: false}
	return nil
}
