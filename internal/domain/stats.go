package domain

import "github.com/shopspring/decimal"

// StatusTotal is one row of a grouped count/sum over commissions or payouts.
type StatusTotal struct {
	Status   string
	Currency string
	Count    int
	Amount   decimal.Decimal
	// Commission is only filled for commission totals.
	Commission decimal.Decimal
}
