package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrCommissionNotFound     = fmt.Errorf("commission %w", ErrNotFound)
	ErrPayoutNotFound         = fmt.Errorf("payout %w", ErrNotFound)
	ErrPayeeNotFound          = fmt.Errorf("payee %w", ErrNotFound)
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidRate            = errors.New("commission rate must be between 0 and 100 with at most 2 decimals")
	ErrUnsupportedCurrency    = errors.New("unsupported currency")
	ErrAmountMismatch         = errors.New("payout amount does not match attached commissions")
	ErrEmptyBatch             = errors.New("payout has no commissions")
	ErrAlreadyReleased        = errors.New("commission already released")
	ErrNotYetEligible         = errors.New("commission is not yet eligible for release")
	ErrConcurrencyConflict    = errors.New("concurrent update conflict")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidPayeeType       = errors.New("invalid payee type")
	ErrInvalidPeriod          = errors.New("invalid period")
	ErrPaymentMethodRequired  = errors.New("payment method required")
	ErrInvalidStatus          = errors.New("invalid status")
)

const (
	CodeNotFound               = "not_found"
	CodeInvalidStateTransition = "invalid_state_transition"
	CodeInvalidRate            = "invalid_rate"
	CodeUnsupportedCurrency    = "unsupported_currency"
	CodeAmountMismatch         = "amount_mismatch"
	CodeEmptyBatch             = "empty_batch"
	CodeAlreadyReleased        = "already_released"
	CodeNotYetEligible         = "not_yet_eligible"
	CodeConcurrencyConflict    = "concurrency_conflict"
	CodeIdempotencyConflict    = "idempotency_conflict"
	CodeInvalidAmount          = "invalid_amount"
	CodeInvalidID              = "invalid_id"
	CodeInvalidPayeeType       = "invalid_payee_type"
	CodeInvalidPeriod          = "invalid_period"
	CodePaymentMethodRequired  = "payment_method_required"
	CodeInvalidStatus          = "invalid_status"
	CodeInternal               = "internal_error"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidStateTransition, CodeInvalidStateTransition},
	{ErrInvalidRate, CodeInvalidRate},
	{ErrUnsupportedCurrency, CodeUnsupportedCurrency},
	{ErrAmountMismatch, CodeAmountMismatch},
	{ErrEmptyBatch, CodeEmptyBatch},
	{ErrAlreadyReleased, CodeAlreadyReleased},
	{ErrNotYetEligible, CodeNotYetEligible},
	{ErrConcurrencyConflict, CodeConcurrencyConflict},
	{ErrIdempotencyConflict, CodeIdempotencyConflict},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidID, CodeInvalidID},
	{ErrInvalidPayeeType, CodeInvalidPayeeType},
	{ErrInvalidPeriod, CodeInvalidPeriod},
	{ErrPaymentMethodRequired, CodePaymentMethodRequired},
	{ErrInvalidStatus, CodeInvalidStatus},
}

// Code returns the taxonomy code for err, or CodeInternal when err is not a
// settlement error.
func Code(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// StateError reports an operation rejected because of the current state of a
// commission or payout.
type StateError struct {
	Entity  string
	ID      string
	Status  string
	Action  string
	Message string
	Err     error
}

func (e *StateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.Status)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func payoutTransitionError(p Payout, action, msg string) error {
	return &StateError{
		Entity:  "payout",
		ID:      p.ID,
		Status:  string(p.Status),
		Action:  action,
		Message: msg,
		Err:     ErrInvalidStateTransition,
	}
}

// CommissionStateError builds a StateError for a commission.
func CommissionStateError(c Commission, action string, err error, msg string) error {
	return &StateError{
		Entity:  "commission",
		ID:      c.ID,
		Status:  string(c.Status),
		Action:  action,
		Message: msg,
		Err:     err,
	}
}
