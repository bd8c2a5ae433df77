package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/currency"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// stubSettlement implements every service interface of the router. Each call
// records its input and returns err when set.
type stubSettlement struct {
	err error

	captured     domain.OrderLine
	captureFresh bool
	released     app.ReleaseInput
	refundReason string
	sweptAt      time.Time
	createdIn    app.CreatePayoutInput
	processedIn  app.ProcessPayoutInput
	lastID       string
	lastActor    string
	aggregateIn  app.AggregateInput
	commissionF  app.CommissionFilter
	payoutF      app.PayoutFilter
	statsF       app.StatsFilter
	aggregation  app.AggregationResult
}

func sampleCommission() domain.Commission {
	return domain.Commission{
		ID:               "c-1",
		OrderID:          "o-1",
		PayeeID:          "store-1",
		PayeeType:        domain.PayeeStore,
		OrderAmount:      decimal.RequireFromString("100"),
		CommissionAmount: decimal.RequireFromString("10"),
		NetAmount:        decimal.RequireFromString("90"),
		Currency:         "USD",
		RateApplied:      decimal.RequireFromString("10"),
		Status:           domain.CommissionHeld,
		HoldUntil:        testNow.AddDate(0, 0, 7),
		CapturedAt:       testNow,
	}
}

func samplePayout(status domain.PayoutStatus) domain.Payout {
	return domain.Payout{
		ID:              "p-1",
		PayeeID:         "store-1",
		PayeeType:       domain.PayeeStore,
		Amount:          decimal.RequireFromString("90"),
		Currency:        "USD",
		PeriodStart:     testNow.AddDate(0, 0, -7),
		PeriodEnd:       testNow,
		CommissionCount: 1,
		Status:          status,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
}

func (s *stubSettlement) Capture(_ context.Context, line domain.OrderLine) (app.CaptureResult, error) {
	s.captured = line
	if s.err != nil {
		return app.CaptureResult{}, s.err
	}
	return app.CaptureResult{Commission: sampleCommission(), Created: s.captureFresh}, nil
}

func (s *stubSettlement) Release(_ context.Context, in app.ReleaseInput) (domain.Commission, error) {
	s.released = in
	if s.err != nil {
		return domain.Commission{}, s.err
	}
	c := sampleCommission()
	c.Status = domain.CommissionReleased
	return c, nil
}

func (s *stubSettlement) Refund(_ context.Context, id, reason string) (domain.Commission, error) {
	s.lastID, s.refundReason = id, reason
	if s.err != nil {
		return domain.Commission{}, s.err
	}
	return sampleCommission(), nil
}

func (s *stubSettlement) RefundOrder(_ context.Context, orderID, reason string) (app.RefundOrderResult, error) {
	s.lastID, s.refundReason = orderID, reason
	if s.err != nil {
		return app.RefundOrderResult{}, s.err
	}
	return app.RefundOrderResult{Refunded: []domain.Commission{sampleCommission()}}, nil
}

func (s *stubSettlement) ReleaseEligible(_ context.Context, asOf time.Time) (app.SweepResult, error) {
	s.sweptAt = asOf
	if s.err != nil {
		return app.SweepResult{}, s.err
	}
	return app.SweepResult{Processed: 3, Released: 2, Skipped: 1}, nil
}

func (s *stubSettlement) Create(_ context.Context, in app.CreatePayoutInput) (domain.Payout, error) {
	s.createdIn = in
	if s.err != nil {
		return domain.Payout{}, s.err
	}
	return samplePayout(domain.PayoutPending), nil
}

func (s *stubSettlement) Process(_ context.Context, in app.ProcessPayoutInput) (domain.Payout, error) {
	s.processedIn = in
	if s.err != nil {
		return domain.Payout{}, s.err
	}
	return samplePayout(domain.PayoutProcessing), nil
}

func (s *stubSettlement) transition(id, actor string, status domain.PayoutStatus) (domain.Payout, error) {
	s.lastID, s.lastActor = id, actor
	if s.err != nil {
		return domain.Payout{}, s.err
	}
	return samplePayout(status), nil
}

func (s *stubSettlement) Complete(_ context.Context, id, actor string) (domain.Payout, error) {
	return s.transition(id, actor, domain.PayoutCompleted)
}

func (s *stubSettlement) Cancel(_ context.Context, id, reason, actor string) (domain.Payout, error) {
	s.refundReason = reason
	return s.transition(id, actor, domain.PayoutCancelled)
}

func (s *stubSettlement) Fail(_ context.Context, id, reason, actor string) (domain.Payout, error) {
	s.refundReason = reason
	return s.transition(id, actor, domain.PayoutFailed)
}

func (s *stubSettlement) ReleaseCommissions(_ context.Context, id, actor string) (domain.Payout, error) {
	return s.transition(id, actor, domain.PayoutFailed)
}

func (s *stubSettlement) Aggregate(_ context.Context, in app.AggregateInput) ([]app.Candidate, error) {
	s.aggregateIn = in
	if s.err != nil {
		return nil, s.err
	}
	c := sampleCommission()
	return []app.Candidate{{
		Currency:    "USD",
		Commissions: []domain.Commission{c},
		Total:       c.NetAmount,
		Eligible:    true,
	}}, nil
}

func (s *stubSettlement) CreatePayouts(_ context.Context, in app.AggregateInput, actor string) (app.AggregationResult, error) {
	s.aggregateIn, s.lastActor = in, actor
	if s.err != nil {
		return app.AggregationResult{}, s.err
	}
	return s.aggregation, nil
}

func (s *stubSettlement) ListPayouts(_ context.Context, f app.PayoutFilter) (app.PayoutList, error) {
	s.payoutF = f
	if s.err != nil {
		return app.PayoutList{}, s.err
	}
	return app.PayoutList{
		Payouts:    []domain.PayoutView{{Payout: samplePayout(domain.PayoutPending)}},
		Pagination: app.Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1},
	}, nil
}

func (s *stubSettlement) GetPayout(_ context.Context, id string) (domain.PayoutView, error) {
	s.lastID = id
	if s.err != nil {
		return domain.PayoutView{}, s.err
	}
	return domain.PayoutView{
		Payout:      samplePayout(domain.PayoutPending),
		Payee:       &domain.Payee{ID: "store-1", Type: domain.PayeeStore, Name: "Kigali Crafts"},
		Commissions: []domain.Commission{sampleCommission()},
	}, nil
}

func (s *stubSettlement) ListCommissions(_ context.Context, f app.CommissionFilter) (app.CommissionList, error) {
	s.commissionF = f
	if s.err != nil {
		return app.CommissionList{}, s.err
	}
	return app.CommissionList{
		Commissions: []domain.Commission{sampleCommission()},
		Pagination:  app.Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1},
	}, nil
}

func (s *stubSettlement) GetCommission(_ context.Context, id string) (domain.Commission, error) {
	s.lastID = id
	if s.err != nil {
		return domain.Commission{}, s.err
	}
	return sampleCommission(), nil
}

func (s *stubSettlement) PayoutStats(_ context.Context, f app.StatsFilter) (app.PayoutStats, error) {
	s.statsF = f
	if s.err != nil {
		return app.PayoutStats{}, s.err
	}
	return app.PayoutStats{
		Statuses: []app.PayoutStatusStats{{
			Status:  domain.PayoutCompleted,
			Count:   2,
			Amounts: []app.CurrencyAmount{{Currency: "USD", Amount: decimal.RequireFromString("120")}},
		}},
		TotalBase: decimal.RequireFromString("156000"),
		Base:      "RWF",
	}, nil
}

func (s *stubSettlement) CommissionStats(_ context.Context, f app.StatsFilter) ([]app.CommissionStatusStats, error) {
	s.statsF = f
	if s.err != nil {
		return nil, s.err
	}
	return []app.CommissionStatusStats{{
		Status:     domain.CommissionHeld,
		Currency:   "USD",
		Count:      1,
		Net:        decimal.RequireFromString("90"),
		Commission: decimal.RequireFromString("10"),
	}}, nil
}

func (s *stubSettlement) EscrowSummary(_ context.Context, payeeType domain.PayeeType, payeeID string) (app.EscrowSummary, error) {
	s.lastID = payeeID
	if s.err != nil {
		return app.EscrowSummary{}, s.err
	}
	return app.EscrowSummary{
		PayeeID:   payeeID,
		PayeeType: payeeType,
		Balances: []app.EscrowBalance{{
			Currency: "USD",
			Held:     decimal.RequireFromString("90"),
			Released: decimal.Zero,
			Refunded: decimal.Zero,
			Paid:     decimal.Zero,
		}},
	}, nil
}

func testRates() currency.StaticSource {
	return currency.NewStaticSource([]domain.CurrencyRate{
		{Code: "RWF", Name: "Rwandan Franc", Symbol: "RWF", RateToBase: decimal.NewFromInt(1), DecimalDigits: 0, SymbolPosition: domain.SymbolAfter, Active: true},
		{Code: "USD", Name: "US Dollar", Symbol: "$", RateToBase: decimal.RequireFromString("0.00077"), DecimalDigits: 2, SymbolPosition: domain.SymbolBefore, Active: true},
	})
}

func newTestRouter(svc *stubSettlement) http.Handler {
	return NewRouter(RouterDeps{
		Commissions: svc,
		Escrow:      svc,
		Payouts:     svc,
		Aggregator:  svc,
		Queries:     svc,
		Rates:       testRates(),
		Clock:       clock.NewFixed(testNow),
	})
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "admin-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
