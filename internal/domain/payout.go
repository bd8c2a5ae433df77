package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

// PayoutStatuses lists every status in lifecycle order.
var PayoutStatuses = []PayoutStatus{
	PayoutPending,
	PayoutProcessing,
	PayoutCompleted,
	PayoutFailed,
	PayoutCancelled,
}

func (s PayoutStatus) Valid() bool {
	for _, v := range PayoutStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s PayoutStatus) Terminal() bool {
	return s == PayoutCompleted || s == PayoutFailed || s == PayoutCancelled
}

// ParsePayoutStatus accepts the status in any case.
func ParsePayoutStatus(s string) (PayoutStatus, bool) {
	st := PayoutStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

const (
	MsgPayoutCreated             = "Payout created successfully"
	MsgPayoutProcessing          = "Payout is being processed"
	MsgPayoutCompleted           = "Payout completed successfully"
	MsgPayoutCancelled           = "Payout cancelled"
	MsgPayoutFailed              = "Payout marked as failed"
	MsgPayoutCommissionsReleased = "Payout commissions released"

	MsgOnlyPendingProcess      = "Only pending payouts can be processed"
	MsgOnlyProcessingComplete  = "Only processing payouts can be completed"
	MsgOnlyProcessingFail      = "Only processing payouts can be failed"
	MsgCompletedNotCancellable = "Completed payouts cannot be cancelled"
	MsgAlreadyCancelled        = "Payout is already cancelled"
	MsgFailedNotCancellable    = "Failed payouts cannot be cancelled"
	MsgOnlyFailedRelease       = "Only failed payouts can release their commissions"
	MsgAlreadyReleasedPayout   = "Payout commissions were already released"
)

// Payout is one payee's batched transfer for a single currency and period.
type Payout struct {
	ID                    string
	PayeeID               string
	PayeeType             PayeeType
	Amount                decimal.Decimal
	Currency              string
	PeriodStart           time.Time
	PeriodEnd             time.Time
	CommissionCount       int
	Status                PayoutStatus
	PaymentMethod         string
	PaymentReference      string
	Notes                 string
	ProcessedAt           *time.Time
	ProcessedBy           string
	CompletedAt           *time.Time
	CancelledAt           *time.Time
	CancelReason          string
	FailedAt              *time.Time
	FailureReason         string
	CommissionsReleasedAt *time.Time
	CreatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Process moves a pending payout to processing.
func (p *Payout) Process(method, reference, notes, actor string, at time.Time) error {
	if p.Status != PayoutPending {
		return payoutTransitionError(*p, "process", MsgOnlyPendingProcess)
	}
	if strings.TrimSpace(method) == "" {
		return ErrPaymentMethodRequired
	}
	p.Status = PayoutProcessing
	p.PaymentMethod = method
	p.PaymentReference = reference
	if notes != "" {
		p.Notes = notes
	}
	p.ProcessedAt = &at
	p.ProcessedBy = actor
	p.UpdatedAt = at
	return nil
}

// Complete moves a processing payout to completed.
func (p *Payout) Complete(at time.Time) error {
	if p.Status != PayoutProcessing {
		return payoutTransitionError(*p, "complete", MsgOnlyProcessingComplete)
	}
	p.Status = PayoutCompleted
	p.CompletedAt = &at
	p.UpdatedAt = at
	return nil
}

// Cancel moves a pending or processing payout to cancelled.
func (p *Payout) Cancel(reason string, at time.Time) error {
	switch p.Status {
	case PayoutPending, PayoutProcessing:
	case PayoutCompleted:
		return payoutTransitionError(*p, "cancel", MsgCompletedNotCancellable)
	case PayoutCancelled:
		return payoutTransitionError(*p, "cancel", MsgAlreadyCancelled)
	default:
		return payoutTransitionError(*p, "cancel", MsgFailedNotCancellable)
	}
	p.Status = PayoutCancelled
	p.CancelReason = reason
	if reason != "" {
		p.Notes = "Cancelled: " + reason
	}
	p.CancelledAt = &at
	p.UpdatedAt = at
	return nil
}

// Fail moves a processing payout to failed. Its commissions stay attached.
func (p *Payout) Fail(reason string, at time.Time) error {
	if p.Status != PayoutProcessing {
		return payoutTransitionError(*p, "fail", MsgOnlyProcessingFail)
	}
	p.Status = PayoutFailed
	p.FailureReason = reason
	p.FailedAt = &at
	p.UpdatedAt = at
	return nil
}

// ReleaseCommissions records that the commissions of a failed payout were
// detached for a new attempt. The payout itself stays failed.
func (p *Payout) ReleaseCommissions(at time.Time) error {
	if p.Status != PayoutFailed {
		return payoutTransitionError(*p, "release commissions of", MsgOnlyFailedRelease)
	}
	if p.CommissionsReleasedAt != nil {
		return payoutTransitionError(*p, "release commissions of", MsgAlreadyReleasedPayout)
	}
	p.CommissionsReleasedAt = &at
	p.UpdatedAt = at
	return nil
}

// Payee is the read model of a store or delivery provider.
type Payee struct {
	ID    string
	Type  PayeeType
	Name  string
	Email string
}

// PayoutView is a payout joined with its payee and attempted commissions.
type PayoutView struct {
	Payout      Payout
	Payee       *Payee
	Commissions []Commission
}
