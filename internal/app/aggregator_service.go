package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SchedulerActor = "SYSTEM_PAYOUT_SCHEDULER"

type AggregationRepository interface {
	ListAvailableCommissions(ctx context.Context, q AvailableQuery) ([]domain.Commission, error)
	// ListPayeesWithAvailable lists payees with available commissions captured
	// in [start, end). A zero start has no lower bound.
	ListPayeesWithAvailable(ctx context.Context, start, end time.Time) ([]domain.PayeeKey, error)
}

// PayoutCreator creates a payout and attaches its commissions atomically.
type PayoutCreator interface {
	Create(ctx context.Context, in CreatePayoutInput) (domain.Payout, error)
}

// AggregatorService groups available commissions into payouts, one payout
// per payee and currency.
type AggregatorService struct {
	repo     AggregationRepository
	payouts  PayoutCreator
	settings SettingsProvider
	clock    clock.Clock
	deps     serviceDeps
}

func NewAggregatorService(repo AggregationRepository, payouts PayoutCreator, settings SettingsProvider, clk clock.Clock, opts ...Option) *AggregatorService {
	return &AggregatorService{
		repo:     repo,
		payouts:  payouts,
		settings: settings,
		clock:    clk,
		deps:     newServiceDeps("aggregator", opts),
	}
}

type AggregateInput struct {
	PayeeID   string
	PayeeType domain.PayeeType
	Start     time.Time
	End       time.Time
	// Backlog also takes commissions captured before Start, so nothing
	// released late or held back by the minimum is left behind.
	Backlog bool
}

func (in AggregateInput) queryStart() time.Time {
	if in.Backlog {
		return time.Time{}
	}
	return in.Start
}

// Candidate is the prospective payout of one currency.
type Candidate struct {
	Currency    string
	Commissions []domain.Commission
	Total       decimal.Decimal
	Eligible    bool
}

func (c Candidate) CommissionIDs() []string {
	ids := make([]string, len(c.Commissions))
	for i, cm := range c.Commissions {
		ids[i] = cm.ID
	}
	return ids
}

// Aggregate previews the payouts a payee would get for the window. It never
// writes. Currencies below the minimum payout are returned with Eligible
// false.
func (s *AggregatorService) Aggregate(ctx context.Context, in AggregateInput) ([]Candidate, error) {
	if err := validateAggregateInput(in); err != nil {
		return nil, err
	}
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	commissions, err := s.repo.ListAvailableCommissions(ctx, AvailableQuery{
		PayeeID:   in.PayeeID,
		PayeeType: in.PayeeType,
		Start:     in.queryStart(),
		End:       in.End,
	})
	if err != nil {
		return nil, err
	}
	return groupByCurrency(commissions, settings.MinPayoutAmount), nil
}

type GroupFailure struct {
	Currency string
	Err      error
}

type AggregationResult struct {
	Created []domain.Payout
	Skipped []Candidate
	Failed  []GroupFailure
}

// CreatePayouts creates one payout per eligible currency of the payee. Each
// currency is created in its own transaction; a failing currency does not
// stop the others.
func (s *AggregatorService) CreatePayouts(ctx context.Context, in AggregateInput, actor string) (AggregationResult, error) {
	candidates, err := s.Aggregate(ctx, in)
	if err != nil {
		return AggregationResult{}, err
	}

	var result AggregationResult
	for _, cand := range candidates {
		if !cand.Eligible {
			result.Skipped = append(result.Skipped, cand)
			s.deps.metrics.IncAggregationGroup("below_minimum")
			continue
		}

		var payout domain.Payout
		attempt := 0
		err := RetryOnConflict(ctx, s.deps.retryAttempts, func(ctx context.Context) error {
			attempt++
			current := cand
			if attempt > 1 {
				// Another run attached part of the group; start from what is left.
				refreshed, ok, err := s.refreshCandidate(ctx, in, cand.Currency)
				if err != nil {
					return err
				}
				if !ok {
					return errNothingLeft
				}
				current = refreshed
			}
			p, err := s.payouts.Create(ctx, CreatePayoutInput{
				PayeeID:       in.PayeeID,
				PayeeType:     in.PayeeType,
				Amount:        current.Total,
				Currency:      current.Currency,
				PeriodStart:   in.Start,
				PeriodEnd:     in.End,
				CommissionIDs: current.CommissionIDs(),
				Backlog:       in.Backlog,
				Actor:         actor,
			})
			if err != nil {
				return err
			}
			payout = p
			return nil
		})
		switch {
		case err == nil:
			result.Created = append(result.Created, payout)
			s.deps.metrics.IncAggregationGroup("created")
		case errors.Is(err, errNothingLeft):
			result.Skipped = append(result.Skipped, cand)
			s.deps.metrics.IncAggregationGroup("below_minimum")
		default:
			result.Failed = append(result.Failed, GroupFailure{Currency: cand.Currency, Err: err})
			s.deps.metrics.IncAggregationGroup("failed")
			s.deps.log.Warn("payout aggregation failed",
				zap.String("payee_id", in.PayeeID),
				zap.String("currency", cand.Currency),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

var errNothingLeft = errors.New("no eligible commissions left")

func (s *AggregatorService) refreshCandidate(ctx context.Context, in AggregateInput, currency string) (Candidate, bool, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return Candidate{}, false, err
	}
	commissions, err := s.repo.ListAvailableCommissions(ctx, AvailableQuery{
		PayeeID:   in.PayeeID,
		PayeeType: in.PayeeType,
		Currency:  currency,
		Start:     in.queryStart(),
		End:       in.End,
	})
	if err != nil {
		return Candidate{}, false, err
	}
	groups := groupByCurrency(commissions, settings.MinPayoutAmount)
	if len(groups) == 0 || !groups[0].Eligible {
		return Candidate{}, false, nil
	}
	return groups[0], true, nil
}

type ScheduledRunResult struct {
	Payees  int
	Created []domain.Payout
	Skipped int
	Failed  int
}

// RunScheduled creates payouts for every payee with available commissions
// captured before end. Commissions captured before start are included; the
// window labels the payouts. Payees that fail are logged and skipped.
func (s *AggregatorService) RunScheduled(ctx context.Context, start, end time.Time) (ScheduledRunResult, error) {
	if !start.Before(end) {
		return ScheduledRunResult{}, domain.ErrInvalidPeriod
	}
	payees, err := s.repo.ListPayeesWithAvailable(ctx, time.Time{}, end)
	if err != nil {
		return ScheduledRunResult{}, err
	}

	result := ScheduledRunResult{Payees: len(payees)}
	for _, payee := range payees {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.CreatePayouts(ctx, AggregateInput{
			PayeeID:   payee.ID,
			PayeeType: payee.Type,
			Start:     start,
			End:       end,
			Backlog:   true,
		}, SchedulerActor)
		if err != nil {
			result.Failed++
			s.deps.log.Warn("scheduled payout failed",
				zap.String("payee_id", payee.ID),
				zap.String("payee_type", string(payee.Type)),
				zap.Error(err),
			)
			continue
		}
		result.Created = append(result.Created, res.Created...)
		result.Skipped += len(res.Skipped)
		result.Failed += len(res.Failed)
	}

	s.deps.log.Info("scheduled payout run finished",
		zap.Time("period_start", start),
		zap.Time("period_end", end),
		zap.Int("payees", result.Payees),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func validateAggregateInput(in AggregateInput) error {
	if in.PayeeID == "" {
		return domain.ErrInvalidID
	}
	if !in.PayeeType.Valid() {
		return domain.ErrInvalidPayeeType
	}
	if in.Start.IsZero() || !in.Start.Before(in.End) {
		return domain.ErrInvalidPeriod
	}
	return nil
}

// groupByCurrency keeps the repository order inside each currency and sorts
// the groups by currency code.
func groupByCurrency(commissions []domain.Commission, minimum decimal.Decimal) []Candidate {
	index := make(map[string]int)
	var groups []Candidate
	for _, c := range commissions {
		i, ok := index[c.Currency]
		if !ok {
			i = len(groups)
			index[c.Currency] = i
			groups = append(groups, Candidate{Currency: c.Currency, Total: decimal.Zero})
		}
		groups[i].Commissions = append(groups[i].Commissions, c)
		groups[i].Total = groups[i].Total.Add(c.NetAmount)
	}
	for i := range groups {
		groups[i].Eligible = groups[i].Total.IsPositive() && groups[i].Total.GreaterThanOrEqual(minimum)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Currency < groups[j].Currency })
	return groups
}
