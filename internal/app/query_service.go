package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Page is a normalized page request.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func normalizePage(p Page) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

func newPagination(p Page, total int) Pagination {
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

type PayoutFilter struct {
	Status    domain.PayoutStatus
	PayeeID   string
	PayeeType domain.PayeeType
	Page
}

type CommissionFilter struct {
	PayeeID   string
	PayeeType domain.PayeeType
	Status    domain.CommissionStatus
	OrderID   string
	Page
}

// StatsFilter narrows stats to a payee and/or a creation window.
type StatsFilter struct {
	PayeeID   string
	PayeeType domain.PayeeType
	From      time.Time
	To        time.Time
}

type QueryRepository interface {
	ListPayouts(ctx context.Context, f PayoutFilter) ([]domain.PayoutView, int, error)
	GetPayoutView(ctx context.Context, id string) (domain.PayoutView, error)
	ListCommissions(ctx context.Context, f CommissionFilter) ([]domain.Commission, int, error)
	GetCommission(ctx context.Context, id string) (domain.Commission, error)
	PayoutTotals(ctx context.Context, f StatsFilter) ([]domain.StatusTotal, error)
	CommissionTotals(ctx context.Context, f StatsFilter) ([]domain.StatusTotal, error)
	// EscrowBalances returns per status and currency totals of one payee's
	// commissions and the earliest holdUntil still pending.
	EscrowBalances(ctx context.Context, payeeType domain.PayeeType, payeeID string) ([]domain.StatusTotal, *time.Time, error)
}

// QueryService answers read-only questions about settlement state. It reads
// the same store the services write, so answers reflect every committed
// transition.
type QueryService struct {
	repo  QueryRepository
	rates RateSource
	deps  serviceDeps
}

func NewQueryService(repo QueryRepository, rates RateSource, opts ...Option) *QueryService {
	return &QueryService{
		repo:  repo,
		rates: rates,
		deps:  newServiceDeps("query", opts),
	}
}

type PayoutList struct {
	Payouts    []domain.PayoutView
	Pagination Pagination
}

// ListPayouts returns payouts newest first.
func (s *QueryService) ListPayouts(ctx context.Context, f PayoutFilter) (PayoutList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return PayoutList{}, domain.ErrInvalidStatus
	}
	if f.PayeeType != "" && !f.PayeeType.Valid() {
		return PayoutList{}, domain.ErrInvalidPayeeType
	}
	f.PayeeID = strings.TrimSpace(f.PayeeID)
	f.Page = normalizePage(f.Page)

	payouts, total, err := s.repo.ListPayouts(ctx, f)
	if err != nil {
		return PayoutList{}, err
	}
	return PayoutList{Payouts: payouts, Pagination: newPagination(f.Page, total)}, nil
}

func (s *QueryService) GetPayout(ctx context.Context, id string) (domain.PayoutView, error) {
	if strings.TrimSpace(id) == "" {
		return domain.PayoutView{}, domain.ErrInvalidID
	}
	return s.repo.GetPayoutView(ctx, id)
}

type CommissionList struct {
	Commissions []domain.Commission
	Pagination  Pagination
}

func (s *QueryService) ListCommissions(ctx context.Context, f CommissionFilter) (CommissionList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return CommissionList{}, domain.ErrInvalidStatus
	}
	if f.PayeeType != "" && !f.PayeeType.Valid() {
		return CommissionList{}, domain.ErrInvalidPayeeType
	}
	f.Page = normalizePage(f.Page)

	commissions, total, err := s.repo.ListCommissions(ctx, f)
	if err != nil {
		return CommissionList{}, err
	}
	return CommissionList{Commissions: commissions, Pagination: newPagination(f.Page, total)}, nil
}

func (s *QueryService) GetCommission(ctx context.Context, id string) (domain.Commission, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Commission{}, domain.ErrInvalidID
	}
	return s.repo.GetCommission(ctx, id)
}

// CurrencyAmount is a sum in one currency.
type CurrencyAmount struct {
	Currency string
	Amount   decimal.Decimal
}

type PayoutStatusStats struct {
	Status  domain.PayoutStatus
	Count   int
	Amounts []CurrencyAmount
}

type PayoutStats struct {
	Statuses []PayoutStatusStats
	// TotalBase is the amount of every pending, processing, completed and
	// failed payout converted to the base currency. Cancelled payouts are
	// left out. It is for display only.
	TotalBase decimal.Decimal
	Base      string
}

// PayoutStats returns count and amount per payout status. Every status is
// present, with zero counts where no payout matches.
func (s *QueryService) PayoutStats(ctx context.Context, f StatsFilter) (PayoutStats, error) {
	totals, err := s.repo.PayoutTotals(ctx, f)
	if err != nil {
		return PayoutStats{}, err
	}

	byStatus := make(map[domain.PayoutStatus]*PayoutStatusStats, len(domain.PayoutStatuses))
	stats := PayoutStats{
		Statuses:  make([]PayoutStatusStats, len(domain.PayoutStatuses)),
		TotalBase: decimal.Zero,
		Base:      domain.BaseCurrency,
	}
	for i, st := range domain.PayoutStatuses {
		stats.Statuses[i] = PayoutStatusStats{Status: st}
		byStatus[st] = &stats.Statuses[i]
	}

	table, err := s.rates.Table(ctx)
	if err != nil {
		return PayoutStats{}, err
	}
	for _, row := range totals {
		st, ok := byStatus[domain.PayoutStatus(row.Status)]
		if !ok {
			continue
		}
		st.Count += row.Count
		st.Amounts = append(st.Amounts, CurrencyAmount{Currency: row.Currency, Amount: row.Amount})
		if st.Status == domain.PayoutCancelled {
			continue
		}

		converted, err := table.Convert(row.Amount, row.Currency, domain.BaseCurrency)
		if err != nil {
			// A deactivated currency still has payouts; leave it out of the display total.
			s.deps.log.Warn("payout stats conversion skipped",
				zap.String("currency", row.Currency),
				zap.Error(err),
			)
			continue
		}
		stats.TotalBase = stats.TotalBase.Add(converted)
	}
	for i := range stats.Statuses {
		sortAmounts(stats.Statuses[i].Amounts)
	}
	return stats, nil
}

type CommissionStatusStats struct {
	Status     domain.CommissionStatus
	Currency   string
	Count      int
	Net        decimal.Decimal
	Commission decimal.Decimal
}

// CommissionStats returns count and totals per commission status and
// currency.
func (s *QueryService) CommissionStats(ctx context.Context, f StatsFilter) ([]CommissionStatusStats, error) {
	totals, err := s.repo.CommissionTotals(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]CommissionStatusStats, 0, len(totals))
	for _, row := range totals {
		out = append(out, CommissionStatusStats{
			Status:     domain.CommissionStatus(row.Status),
			Currency:   row.Currency,
			Count:      row.Count,
			Net:        row.Amount,
			Commission: row.Commission,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

type EscrowBalance struct {
	Currency string
	Held     decimal.Decimal
	Released decimal.Decimal
	Refunded decimal.Decimal
	Paid     decimal.Decimal
}

type EscrowSummary struct {
	PayeeID       string
	PayeeType     domain.PayeeType
	Balances      []EscrowBalance
	NextHoldUntil *time.Time
}

// EscrowSummary returns the net amounts of one payee per commission status
// and currency.
func (s *QueryService) EscrowSummary(ctx context.Context, payeeType domain.PayeeType, payeeID string) (EscrowSummary, error) {
	payeeID = strings.TrimSpace(payeeID)
	if payeeID == "" {
		return EscrowSummary{}, domain.ErrInvalidID
	}
	if !payeeType.Valid() {
		return EscrowSummary{}, domain.ErrInvalidPayeeType
	}
	totals, next, err := s.repo.EscrowBalances(ctx, payeeType, payeeID)
	if err != nil {
		return EscrowSummary{}, err
	}

	index := make(map[string]int)
	summary := EscrowSummary{PayeeID: payeeID, PayeeType: payeeType, NextHoldUntil: next}
	for _, row := range totals {
		i, ok := index[row.Currency]
		if !ok {
			i = len(summary.Balances)
			index[row.Currency] = i
			summary.Balances = append(summary.Balances, EscrowBalance{
				Currency: row.Currency,
				Held:     decimal.Zero,
				Released: decimal.Zero,
				Refunded: decimal.Zero,
				Paid:     decimal.Zero,
			})
		}
		b := &summary.Balances[i]
		switch domain.CommissionStatus(row.Status) {
		case domain.CommissionHeld:
			b.Held = b.Held.Add(row.Amount)
		case domain.CommissionReleased:
			b.Released = b.Released.Add(row.Amount)
		case domain.CommissionRefunded:
			b.Refunded = b.Refunded.Add(row.Amount)
		case domain.CommissionPaid:
			b.Paid = b.Paid.Add(row.Amount)
		}
	}
	sort.Slice(summary.Balances, func(i, j int) bool {
		return summary.Balances[i].Currency < summary.Balances[j].Currency
	})
	return summary, nil
}

func sortAmounts(a []CurrencyAmount) {
	sort.Slice(a, func(i, j int) bool { return a[i].Currency < a[j].Currency })
}
