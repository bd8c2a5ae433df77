package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Setting keys owned by the external settings subsystem.
const (
	SettingEscrowEnabled          = "escrow_enabled"
	SettingEscrowDefaultHoldDays  = "escrow_default_hold_days"
	SettingMinPayoutAmount        = "min_payout_amount"
	SettingGlobalCommissionRate   = "global_commission_rate"
	SettingProviderCommissionRate = "provider_commission_rate"
)

// PayeeKey identifies a payee across both payee types.
type PayeeKey struct {
	Type PayeeType
	ID   string
}

// Settings is the configuration snapshot one settlement operation observes.
type Settings struct {
	EscrowEnabled          bool
	EscrowHoldDays         int
	MinPayoutAmount        decimal.Decimal
	GlobalCommissionRate   decimal.Decimal
	ProviderCommissionRate decimal.NullDecimal
	RateOverrides          map[PayeeKey]decimal.Decimal
}

func DefaultSettings() Settings {
	return Settings{
		EscrowEnabled:        true,
		EscrowHoldDays:       7,
		MinPayoutAmount:      decimal.NewFromInt(50),
		GlobalCommissionRate: decimal.NewFromInt(10),
	}
}

// RateFor resolves the commission rate for a payee: per-payee override first,
// then the provider rate for providers, then the global rate.
func (s Settings) RateFor(t PayeeType, payeeID string) decimal.Decimal {
	if rate, ok := s.RateOverrides[PayeeKey{Type: t, ID: payeeID}]; ok {
		return rate
	}
	if t == PayeeProvider && s.ProviderCommissionRate.Valid {
		return s.ProviderCommissionRate.Decimal
	}
	return s.GlobalCommissionRate
}

// HoldUntil returns when a commission captured at capturedAt leaves escrow.
func (s Settings) HoldUntil(capturedAt time.Time) time.Time {
	if !s.EscrowEnabled || s.EscrowHoldDays <= 0 {
		return capturedAt
	}
	return capturedAt.AddDate(0, 0, s.EscrowHoldDays)
}

// ApplyValues overlays raw key/value settings on s. Unknown keys are ignored.
func (s Settings) ApplyValues(values map[string]string) (Settings, error) {
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		switch key {
		case SettingEscrowEnabled:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return Settings{}, fmt.Errorf("setting %s: %w", key, err)
			}
			s.EscrowEnabled = v
		case SettingEscrowDefaultHoldDays:
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				return Settings{}, fmt.Errorf("setting %s: invalid value %q", key, raw)
			}
			s.EscrowHoldDays = v
		case SettingMinPayoutAmount:
			v, err := decimal.NewFromString(raw)
			if err != nil || v.IsNegative() {
				return Settings{}, fmt.Errorf("setting %s: invalid value %q", key, raw)
			}
			s.MinPayoutAmount = v
		case SettingGlobalCommissionRate:
			v, err := parseRate(raw)
			if err != nil {
				return Settings{}, fmt.Errorf("setting %s: %w", key, err)
			}
			s.GlobalCommissionRate = v
		case SettingProviderCommissionRate:
			v, err := parseRate(raw)
			if err != nil {
				return Settings{}, fmt.Errorf("setting %s: %w", key, err)
			}
			s.ProviderCommissionRate = decimal.NewNullDecimal(v)
		}
	}
	return s, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidateRate(v); err != nil {
		return decimal.Zero, err
	}
	return v, nil
}
