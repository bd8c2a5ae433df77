package domain

import "time"

const (
	EventCommissionCaptured = "commission.captured"
	EventCommissionReleased = "commission.released"
	EventCommissionRefunded = "commission.refunded"
	EventPayoutCreated      = "payout.created"
	EventPayoutProcessing   = "payout.processing"
	EventPayoutCompleted    = "payout.completed"
	EventPayoutCancelled    = "payout.cancelled"
	EventPayoutFailed       = "payout.failed"
)

// Event is a settlement fact published after its transaction commits.
// Key is the payee id so consumers see one payee's events in order.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"-"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	CommissionID string `json:"commission_id,omitempty"`
	PayoutID     string `json:"payout_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	PayeeID      string `json:"payee_id"`
	PayeeType    string `json:"payee_type"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Reason       string `json:"reason,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

func CommissionEvent(id, eventType string, c Commission, at time.Time) Event {
	return Event{
		ID:         id,
		Type:       eventType,
		Key:        c.PayeeID,
		OccurredAt: at,
		Data: EventData{
			CommissionID: c.ID,
			OrderID:      c.OrderID,
			PayeeID:      c.PayeeID,
			PayeeType:    string(c.PayeeType),
			Status:       string(c.Status),
			Amount:       c.NetAmount.String(),
			Currency:     c.Currency,
			Reason:       c.RefundReason,
			Actor:        c.ReleasedBy,
		},
	}
}

func PayoutEvent(id, eventType string, p Payout, actor string, at time.Time) Event {
	reason := p.CancelReason
	if p.Status == PayoutFailed {
		reason = p.FailureReason
	}
	return Event{
		ID:         id,
		Type:       eventType,
		Key:        p.PayeeID,
		OccurredAt: at,
		Data: EventData{
			PayoutID:  p.ID,
			PayeeID:   p.PayeeID,
			PayeeType: string(p.PayeeType),
			Status:    string(p.Status),
			Amount:    p.Amount.String(),
			Currency:  p.Currency,
			Reason:    reason,
			Actor:     actor,
		},
	}
}
