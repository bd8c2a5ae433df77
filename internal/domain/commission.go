package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PayeeType tags who receives the net amount of a commission.
type PayeeType string

const (
	PayeeStore    PayeeType = "STORE"
	PayeeProvider PayeeType = "PROVIDER"
)

func (t PayeeType) Valid() bool {
	return t == PayeeStore || t == PayeeProvider
}

// ParsePayeeType accepts the payee type in any case.
func ParsePayeeType(s string) (PayeeType, error) {
	t := PayeeType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidPayeeType
	}
	return t, nil
}

type CommissionStatus string

const (
	CommissionHeld     CommissionStatus = "HELD"
	CommissionReleased CommissionStatus = "RELEASED"
	CommissionRefunded CommissionStatus = "REFUNDED"
	CommissionPaid     CommissionStatus = "PAID"
)

func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionHeld, CommissionReleased, CommissionRefunded, CommissionPaid:
		return true
	}
	return false
}

const (
	ReleasedBySweep          = "SYSTEM_AUTO_RELEASE"
	ReleasedByEscrowDisabled = "SYSTEM_ESCROW_DISABLED"
)

// OrderLine is the captured slice of an order owed to one payee.
type OrderLine struct {
	OrderID    string
	PayeeID    string
	PayeeType  PayeeType
	Amount     decimal.Decimal
	Currency   string
	CapturedAt time.Time
}

// Commission splits one order line between the platform and the payee.
// CommissionAmount + NetAmount always equals OrderAmount.
type Commission struct {
	ID               string
	OrderID          string
	PayeeID          string
	PayeeType        PayeeType
	OrderAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	NetAmount        decimal.Decimal
	Currency         string
	RateApplied      decimal.Decimal
	Status           CommissionStatus
	HoldUntil        time.Time
	CapturedAt       time.Time
	PayoutID         string
	ReleasedAt       *time.Time
	ReleasedBy       string
	RefundedAt       *time.Time
	RefundReason     string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EscrowHold is the view of a commission while its funds are held.
type EscrowHold struct {
	CommissionID string
	HoldUntil    time.Time
}

// Hold returns the escrow hold of c, if c is still held.
func (c Commission) Hold() (EscrowHold, bool) {
	if c.Status != CommissionHeld {
		return EscrowHold{}, false
	}
	return EscrowHold{CommissionID: c.ID, HoldUntil: c.HoldUntil}, true
}

func (c Commission) Attached() bool {
	return c.PayoutID != ""
}

// DueAt reports whether the hold on c has elapsed at t.
func (c Commission) DueAt(t time.Time) bool {
	return !t.Before(c.HoldUntil)
}

var hundred = decimal.NewFromInt(100)

// RateDigits is the number of fractional digits a stored rate snapshot keeps.
const RateDigits int32 = 2

// ValidateRate checks that rate is a percentage in [0, 100] that is stored
// without rounding.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) || !HasPrecision(rate, RateDigits) {
		return ErrInvalidRate
	}
	return nil
}

// SplitAmount computes the platform commission and payee net for amount at
// rate percent. The commission is rounded up to digits so that rounding never
// favours the payee.
func SplitAmount(amount, rate decimal.Decimal, digits int32) (commission, net decimal.Decimal, err error) {
	if err := ValidateRate(rate); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	commission = amount.Mul(rate).Div(hundred).RoundUp(digits)
	if commission.GreaterThan(amount) {
		commission = amount
	}
	net = amount.Sub(commission)
	return commission, net, nil
}

// HasPrecision reports whether amount fits in digits fractional digits.
func HasPrecision(amount decimal.Decimal, digits int32) bool {
	return amount.Equal(amount.Truncate(digits))
}
