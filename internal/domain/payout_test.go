package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPayout_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    PayoutStatus
		apply   func(p *Payout) error
		want    PayoutStatus
		wantMsg string
	}{
		{name: "process pending", from: PayoutPending, apply: func(p *Payout) error { return p.Process("bank_transfer", "ref-1", "", "admin", now) }, want: PayoutProcessing},
		{name: "process processing", from: PayoutProcessing, apply: func(p *Payout) error { return p.Process("bank_transfer", "", "", "admin", now) }, wantMsg: MsgOnlyPendingProcess},
		{name: "process completed", from: PayoutCompleted, apply: func(p *Payout) error { return p.Process("bank_transfer", "", "", "admin", now) }, wantMsg: MsgOnlyPendingProcess},
		{name: "complete processing", from: PayoutProcessing, apply: func(p *Payout) error { return p.Complete(now) }, want: PayoutCompleted},
		{name: "complete pending", from: PayoutPending, apply: func(p *Payout) error { return p.Complete(now) }, wantMsg: MsgOnlyProcessingComplete},
		{name: "cancel pending", from: PayoutPending, apply: func(p *Payout) error { return p.Cancel("duplicate", now) }, want: PayoutCancelled},
		{name: "cancel processing", from: PayoutProcessing, apply: func(p *Payout) error { return p.Cancel("", now) }, want: PayoutCancelled},
		{name: "cancel completed", from: PayoutCompleted, apply: func(p *Payout) error { return p.Cancel("", now) }, wantMsg: MsgCompletedNotCancellable},
		{name: "cancel cancelled", from: PayoutCancelled, apply: func(p *Payout) error { return p.Cancel("", now) }, wantMsg: MsgAlreadyCancelled},
		{name: "cancel failed", from: PayoutFailed, apply: func(p *Payout) error { return p.Cancel("", now) }, wantMsg: MsgFailedNotCancellable},
		{name: "fail processing", from: PayoutProcessing, apply: func(p *Payout) error { return p.Fail("rejected", now) }, want: PayoutFailed},
		{name: "fail pending", from: PayoutPending, apply: func(p *Payout) error { return p.Fail("rejected", now) }, wantMsg: MsgOnlyProcessingFail},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := Payout{ID: "p1", Status: tc.from}
			err := tc.apply(&p)
			if tc.wantMsg != "" {
				if !errors.Is(err, ErrInvalidStateTransition) {
					t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
				}
				if err.Error() != tc.wantMsg {
					t.Fatalf("expected message %q, got %q", tc.wantMsg, err.Error())
				}
				var stateErr *StateError
				if !errors.As(err, &stateErr) || stateErr.ID != "p1" || stateErr.Status != string(tc.from) {
					t.Fatalf("expected state error for p1 in %s, got %+v", tc.from, stateErr)
				}
				if p.Status != tc.from {
					t.Fatalf("expected status unchanged %s, got %s", tc.from, p.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.Status != tc.want {
				t.Fatalf("expected status %s, got %s", tc.want, p.Status)
			}
		})
	}
}

func TestPayout_ProcessRecordsPayment(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	p := Payout{ID: "p1", Status: PayoutPending}

	if err := p.Process("", "", "", "admin", now); err != ErrPaymentMethodRequired {
		t.Fatalf("expected ErrPaymentMethodRequired, got %v", err)
	}
	if err := p.Process("mobile_money", "MM-42", "weekly run", "admin-7", now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.ProcessedAt == nil || !p.ProcessedAt.Equal(now) {
		t.Fatalf("expected processed_at %v, got %v", now, p.ProcessedAt)
	}
	if p.ProcessedBy != "admin-7" || p.PaymentReference != "MM-42" || p.Notes != "weekly run" {
		t.Fatalf("unexpected payment fields: %+v", p)
	}
}

func TestPayout_CancelNotes(t *testing.T) {
	t.Parallel()

	p := Payout{ID: "p1", Status: PayoutPending}
	if err := p.Cancel("payee closed", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Notes != "Cancelled: payee closed" {
		t.Fatalf("expected cancel notes, got %q", p.Notes)
	}
}

func TestPayout_ReleaseCommissions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := Payout{ID: "p1", Status: PayoutPending}
	if err := p.ReleaseCommissions(now); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	p.Status = PayoutFailed
	if err := p.ReleaseCommissions(now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Status != PayoutFailed {
		t.Fatalf("expected payout to stay FAILED, got %s", p.Status)
	}
	if err := p.ReleaseCommissions(now); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second release to be rejected, got %v", err)
	}
}
