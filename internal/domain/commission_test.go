package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitAmount(t *testing.T) {
	t.Parallel()

	t.Run("fifteen percent of 100.00", func(t *testing.T) {
		commission, net, err := SplitAmount(decimal.RequireFromString("100.00"), decimal.NewFromInt(15), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !commission.Equal(decimal.RequireFromString("15.00")) {
			t.Fatalf("expected commission 15.00, got %s", commission)
		}
		if !net.Equal(decimal.RequireFromString("85.00")) {
			t.Fatalf("expected net 85.00, got %s", net)
		}
	})

	t.Run("rounding goes to the platform", func(t *testing.T) {
		// 10.01 * 15% = 1.5015
		commission, net, err := SplitAmount(decimal.RequireFromString("10.01"), decimal.NewFromInt(15), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !commission.Equal(decimal.RequireFromString("1.51")) {
			t.Fatalf("expected commission 1.51, got %s", commission)
		}
		if !net.Equal(decimal.RequireFromString("8.50")) {
			t.Fatalf("expected net 8.50, got %s", net)
		}
	})

	t.Run("zero digit currency", func(t *testing.T) {
		commission, net, err := SplitAmount(decimal.NewFromInt(1001), decimal.RequireFromString("12.5"), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !commission.Equal(decimal.NewFromInt(126)) {
			t.Fatalf("expected commission 126, got %s", commission)
		}
		if !net.Equal(decimal.NewFromInt(875)) {
			t.Fatalf("expected net 875, got %s", net)
		}
	})

	t.Run("rejects rates outside 0..100 or finer than a hundredth", func(t *testing.T) {
		for _, rate := range []string{"-0.01", "100.01", "250", "12.345", "0.001"} {
			_, _, err := SplitAmount(decimal.NewFromInt(10), decimal.RequireFromString(rate), 2)
			if err != ErrInvalidRate {
				t.Fatalf("rate %s: expected ErrInvalidRate, got %v", rate, err)
			}
		}
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		_, _, err := SplitAmount(decimal.Zero, decimal.NewFromInt(10), 2)
		if err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestSplitAmount_SumsToOrderAmount(t *testing.T) {
	t.Parallel()

	amounts := []string{"0.01", "0.99", "1", "10.01", "33.33", "99.99", "100", "1234.57", "999999.99"}
	rates := []string{"0", "0.5", "1", "7.25", "10", "12.5", "15", "33.33", "50", "99.99", "100"}

	for _, rate := range DefaultCurrencyRates() {
		for _, a := range amounts {
			amount := decimal.RequireFromString(a).Truncate(rate.DecimalDigits)
			if !amount.IsPositive() {
				continue
			}
			for _, r := range rates {
				commission, net, err := SplitAmount(amount, decimal.RequireFromString(r), rate.DecimalDigits)
				if err != nil {
					t.Fatalf("%s %s @ %s: unexpected error %v", rate.Code, amount, r, err)
				}
				if !commission.Add(net).Equal(amount) {
					t.Fatalf("%s %s @ %s: %s + %s != amount", rate.Code, amount, r, commission, net)
				}
				if net.IsNegative() || commission.IsNegative() {
					t.Fatalf("%s %s @ %s: negative split %s / %s", rate.Code, amount, r, commission, net)
				}
				if !HasPrecision(commission, rate.DecimalDigits) {
					t.Fatalf("%s: commission %s exceeds %d digits", rate.Code, commission, rate.DecimalDigits)
				}
				exactNet := amount.Sub(amount.Mul(decimal.RequireFromString(r)).Div(hundred))
				if net.GreaterThan(exactNet) {
					t.Fatalf("%s %s @ %s: net %s inflated above %s", rate.Code, amount, r, net, exactNet)
				}
			}
		}
	}
}

func TestCommission_Hold(t *testing.T) {
	t.Parallel()

	c := Commission{ID: "c1", Status: CommissionHeld}
	if _, ok := c.Hold(); !ok {
		t.Fatalf("expected held commission to expose a hold")
	}
	c.Status = CommissionReleased
	if _, ok := c.Hold(); ok {
		t.Fatalf("expected released commission to have no hold")
	}
}

func TestParsePayeeType(t *testing.T) {
	t.Parallel()

	if got, err := ParsePayeeType("store"); err != nil || got != PayeeStore {
		t.Fatalf("expected STORE, got %s (%v)", got, err)
	}
	if _, err := ParsePayeeType("courier"); err != ErrInvalidPayeeType {
		t.Fatalf("expected ErrInvalidPayeeType, got %v", err)
	}
}
