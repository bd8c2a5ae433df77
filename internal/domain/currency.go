package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every rate is expressed against.
const BaseCurrency = "USD"

type SymbolPosition string

const (
	SymbolBefore SymbolPosition = "before"
	SymbolAfter  SymbolPosition = "after"
)

// CurrencyRate describes one supported currency. Rates are refreshed outside
// the settlement core and only used for display conversion.
type CurrencyRate struct {
	Code           string
	Name           string
	Symbol         string
	RateToBase     decimal.Decimal
	DecimalDigits  int32
	SymbolPosition SymbolPosition
	Active         bool
	UpdatedAt      time.Time
}

// DefaultCurrencyRates is the rate table seeded on a fresh database.
func DefaultCurrencyRates() []CurrencyRate {
	return []CurrencyRate{
		{Code: "USD", Name: "US Dollar", Symbol: "$", RateToBase: decimal.NewFromInt(1), DecimalDigits: 2, SymbolPosition: SymbolBefore, Active: true},
		{Code: "EUR", Name: "Euro", Symbol: "€", RateToBase: decimal.RequireFromString("0.92"), DecimalDigits: 2, SymbolPosition: SymbolBefore, Active: true},
		{Code: "GBP", Name: "British Pound", Symbol: "£", RateToBase: decimal.RequireFromString("0.79"), DecimalDigits: 2, SymbolPosition: SymbolBefore, Active: true},
		{Code: "RWF", Name: "Rwandan Franc", Symbol: "Fr", RateToBase: decimal.NewFromInt(1350), DecimalDigits: 0, SymbolPosition: SymbolAfter, Active: true},
		{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", RateToBase: decimal.NewFromInt(150), DecimalDigits: 0, SymbolPosition: SymbolBefore, Active: true},
		{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", RateToBase: decimal.RequireFromString("0.88"), DecimalDigits: 2, SymbolPosition: SymbolAfter, Active: true},
		{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", RateToBase: decimal.RequireFromString("1.36"), DecimalDigits: 2, SymbolPosition: SymbolBefore, Active: true},
		{Code: "AUD", Name: "Australian Dollar", Symbol: "A$", RateToBase: decimal.RequireFromString("1.53"), DecimalDigits: 2, SymbolPosition: SymbolBefore, Active: true},
	}
}
