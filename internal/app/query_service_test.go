package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

func TestQueryService_ListPayouts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addPayee(domain.PayeeStore, "store-1")
	for i := 0; i < 45; i++ {
		status := domain.PayoutPending
		if i%3 == 0 {
			status = domain.PayoutCompleted
		}
		store.payouts[fmt.Sprintf("p%02d", i)] = domain.Payout{
			ID:        fmt.Sprintf("p%02d", i),
			PayeeID:   "store-1",
			PayeeType: domain.PayeeStore,
			Amount:    dec("10"),
			Currency:  "USD",
			Status:    status,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
	}
	svc := NewQueryService(store, defaultRates())

	t.Run("defaults and newest first", func(t *testing.T) {
		t.Parallel()
		list, err := svc.ListPayouts(context.Background(), PayoutFilter{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list.Payouts) != 20 {
			t.Fatalf("expected 20 payouts, got %d", len(list.Payouts))
		}
		if list.Pagination.Total != 45 || list.Pagination.TotalPages != 3 || list.Pagination.Page != 1 {
			t.Fatalf("unexpected pagination %+v", list.Pagination)
		}
		if list.Payouts[0].Payout.ID != "p44" {
			t.Fatalf("expected newest payout first, got %s", list.Payouts[0].Payout.ID)
		}
		if list.Payouts[0].Payee == nil || list.Payouts[0].Payee.ID != "store-1" {
			t.Fatalf("expected payee joined, got %+v", list.Payouts[0].Payee)
		}
	})

	t.Run("filters by status and caps the limit", func(t *testing.T) {
		t.Parallel()
		list, err := svc.ListPayouts(context.Background(), PayoutFilter{
			Status: domain.PayoutCompleted,
			Page:   Page{Page: 1, Limit: 500},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if list.Pagination.Limit != 100 {
			t.Fatalf("expected limit capped at 100, got %d", list.Pagination.Limit)
		}
		if len(list.Payouts) != 15 {
			t.Fatalf("expected 15 completed payouts, got %d", len(list.Payouts))
		}
	})

	t.Run("last page", func(t *testing.T) {
		t.Parallel()
		list, err := svc.ListPayouts(context.Background(), PayoutFilter{Page: Page{Page: 3, Limit: 20}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list.Payouts) != 5 {
			t.Fatalf("expected 5 payouts on the last page, got %d", len(list.Payouts))
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()
		_, err := svc.ListPayouts(context.Background(), PayoutFilter{Status: "SETTLED"})
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})
}

func TestQueryService_PayoutStats(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	add := func(id string, status domain.PayoutStatus, amount, cur string) {
		store.payouts[id] = domain.Payout{ID: id, PayeeID: "store-1", Status: status, Amount: dec(amount), Currency: cur}
	}
	add("p1", domain.PayoutCompleted, "100", "USD")
	add("p2", domain.PayoutCompleted, "92", "EUR")
	add("p3", domain.PayoutPending, "50", "USD")
	add("p4", domain.PayoutFailed, "1350", "RWF")
	add("p5", domain.PayoutCancelled, "500", "USD")
	svc := NewQueryService(store, defaultRates())

	stats, err := svc.PayoutStats(context.Background(), StatsFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(stats.Statuses) != len(domain.PayoutStatuses) {
		t.Fatalf("expected every status, got %d", len(stats.Statuses))
	}

	byStatus := make(map[domain.PayoutStatus]PayoutStatusStats)
	for _, s := range stats.Statuses {
		byStatus[s.Status] = s
	}
	completed := byStatus[domain.PayoutCompleted]
	if completed.Count != 2 || len(completed.Amounts) != 2 {
		t.Fatalf("expected 2 completed payouts in 2 currencies, got %+v", completed)
	}
	if completed.Amounts[0].Currency != "EUR" {
		t.Fatalf("expected amounts sorted by currency, got %+v", completed.Amounts)
	}
	if byStatus[domain.PayoutProcessing].Count != 0 {
		t.Fatalf("expected zero rows for unused statuses")
	}
	if cancelled := byStatus[domain.PayoutCancelled]; cancelled.Count != 1 || !cancelled.Amounts[0].Amount.Equal(dec("500")) {
		t.Fatalf("expected the cancelled payout listed under its status, got %+v", cancelled)
	}
	if !stats.TotalBase.Equal(dec("251")) {
		t.Fatalf("expected base total 251 without the cancelled payout, got %s", stats.TotalBase)
	}
}

func TestQueryService_EscrowSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	captured := testNow.AddDate(0, 0, -2)
	paid := releasedCommission("c3", "store-1", "USD", "25", captured)
	paid.Status = domain.CommissionPaid
	store.addCommissions(
		heldCommission("c1", "store-1", "USD", "90", captured, testNow.AddDate(0, 0, 5)),
		heldCommission("c2", "store-1", "EUR", "10", captured, testNow.AddDate(0, 0, 2)),
		paid,
		releasedCommission("c4", "store-1", "USD", "5", captured),
		releasedCommission("c5", "store-2", "USD", "500", captured),
	)
	svc := NewQueryService(store, defaultRates())

	summary, err := svc.EscrowSummary(context.Background(), domain.PayeeStore, "store-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(summary.Balances) != 2 {
		t.Fatalf("expected 2 currencies, got %d", len(summary.Balances))
	}
	usd := summary.Balances[1]
	if usd.Currency != "USD" || !usd.Held.Equal(dec("90")) || !usd.Released.Equal(dec("5")) || !usd.Paid.Equal(dec("25")) {
		t.Fatalf("unexpected USD balance %+v", usd)
	}
	if summary.NextHoldUntil == nil || !summary.NextHoldUntil.Equal(testNow.AddDate(0, 0, 2)) {
		t.Fatalf("expected next hold until %v, got %v", testNow.AddDate(0, 0, 2), summary.NextHoldUntil)
	}

	if _, err := svc.EscrowSummary(context.Background(), "DRIVER", "store-1"); !errors.Is(err, domain.ErrInvalidPayeeType) {
		t.Fatalf("expected ErrInvalidPayeeType, got %v", err)
	}
}

func TestQueryService_CommissionStats(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	captured := testNow.AddDate(0, 0, -2)
	c1 := releasedCommission("c1", "store-1", "USD", "90", captured)
	c1.CommissionAmount = dec("10")
	c2 := releasedCommission("c2", "store-1", "USD", "45", captured)
	c2.CommissionAmount = dec("5")
	store.addCommissions(c1, c2, heldCommission("c3", "store-1", "USD", "9", captured, testNow))
	svc := NewQueryService(store, defaultRates())

	stats, err := svc.CommissionStats(context.Background(), StatsFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(stats))
	}
	released := stats[1]
	if released.Status != domain.CommissionReleased || released.Count != 2 {
		t.Fatalf("unexpected released row %+v", released)
	}
	if !released.Net.Equal(dec("135")) || !released.Commission.Equal(dec("15")) {
		t.Fatalf("expected net 135 and commission 15, got %s and %s", released.Net, released.Commission)
	}
}

func TestRetryOnConflict(t *testing.T) {
	t.Parallel()

	t.Run("retries conflicts up to the limit", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := RetryOnConflict(context.Background(), 3, func(context.Context) error {
			calls++
			return fmt.Errorf("update payout: %w", domain.ErrConcurrencyConflict)
		})
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("stops on other errors", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := RetryOnConflict(context.Background(), 3, func(context.Context) error {
			calls++
			return domain.ErrAmountMismatch
		})
		if !errors.Is(err, domain.ErrAmountMismatch) || calls != 1 {
			t.Fatalf("expected a single failing call, got %d calls and %v", calls, err)
		}
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryOnConflict(ctx, 3, func(context.Context) error {
			t.Fatalf("expected fn not to run")
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
