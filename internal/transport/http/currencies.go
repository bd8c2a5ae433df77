package http

import (
	"net/http"
	"strings"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/shopspring/decimal"
)

func HandleListCurrencies(rates app.RateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := rates.Table(r.Context())
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		all := table.Rates()
		resp := make([]currencyResponse, 0, len(all))
		for _, c := range all {
			resp = append(resp, toCurrencyResponse(c))
		}
		writeSuccess(w, http.StatusOK, "", resp)
	}
}

type conversionResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Converted decimal.Decimal `json:"converted"`
	Formatted string          `json:"formatted"`
}

// HandleConvertCurrency converts an amount for display. Settlement amounts are
// never converted.
func HandleConvertCurrency(rates app.RateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "amount must be a decimal number")
			return
		}
		from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
		to := strings.ToUpper(strings.TrimSpace(q.Get("to")))
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "from and to are required")
			return
		}

		table, err := rates.Table(r.Context())
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		converted, err := table.Convert(amount, from, to)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		formatted, err := table.Format(converted, to)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "", conversionResponse{
			Amount:    amount,
			From:      from,
			To:        to,
			Converted: converted,
			Formatted: formatted,
		})
	}
}
