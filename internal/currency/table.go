package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

// Table is an immutable snapshot of the currency rate table.
type Table struct {
	rates map[string]domain.CurrencyRate
}

// NewTable indexes rates by upper-case code.
func NewTable(rates []domain.CurrencyRate) *Table {
	t := &Table{rates: make(map[string]domain.CurrencyRate, len(rates))}
	for _, r := range rates {
		r.Code = normalize(r.Code)
		t.rates[r.Code] = r
	}
	return t
}

// Rate returns the rate for code. Unknown and inactive currencies are
// unsupported.
func (t *Table) Rate(code string) (domain.CurrencyRate, error) {
	r, ok := t.rates[normalize(code)]
	if !ok || !r.Active {
		return domain.CurrencyRate{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, code)
	}
	return r, nil
}

// Rates returns the active rates sorted by code.
func (t *Table) Rates() []domain.CurrencyRate {
	out := make([]domain.CurrencyRate, 0, len(t.rates))
	for _, r := range t.rates {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Round rounds amount half-up to the minor unit of code.
func (t *Table) Round(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	r, err := t.Rate(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Round(r.DecimalDigits), nil
}

// Convert converts amount between currencies through the base currency. The
// result is for display only and is rounded to the target's minor unit.
func (t *Table) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	src, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	if src.Code == dst.Code {
		return amount.Round(dst.DecimalDigits), nil
	}
	base := amount.Div(src.RateToBase)
	return base.Mul(dst.RateToBase).Round(dst.DecimalDigits), nil
}

// Format renders amount with the currency symbol, grouping and minor unit.
func (t *Table) Format(amount decimal.Decimal, code string) (string, error) {
	r, err := t.Rate(code)
	if err != nil {
		return "", err
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	digits := group(amount.StringFixed(r.DecimalDigits))
	if r.SymbolPosition == domain.SymbolAfter {
		return sign + digits + " " + r.Symbol, nil
	}
	return sign + r.Symbol + digits, nil
}

func group(fixed string) string {
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
