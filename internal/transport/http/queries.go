package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

// SettlementQueries is the read side of the settlement core.
type SettlementQueries interface {
	ListPayouts(ctx context.Context, f app.PayoutFilter) (app.PayoutList, error)
	GetPayout(ctx context.Context, id string) (domain.PayoutView, error)
	ListCommissions(ctx context.Context, f app.CommissionFilter) (app.CommissionList, error)
	GetCommission(ctx context.Context, id string) (domain.Commission, error)
	PayoutStats(ctx context.Context, f app.StatsFilter) (app.PayoutStats, error)
	CommissionStats(ctx context.Context, f app.StatsFilter) ([]app.CommissionStatusStats, error)
	EscrowSummary(ctx context.Context, payeeType domain.PayeeType, payeeID string) (app.EscrowSummary, error)
}

type commissionListResponse struct {
	Commissions []commissionResponse `json:"commissions"`
	Pagination  paginationResponse   `json:"pagination"`
}

func HandleListCommissions(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := parsePage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		payeeType, err := optionalPayeeType(q.Get("payee_type"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}

		list, err := svc.ListCommissions(r.Context(), app.CommissionFilter{
			PayeeID:   strings.TrimSpace(q.Get("payee_id")),
			PayeeType: payeeType,
			Status:    domain.CommissionStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
			OrderID:   strings.TrimSpace(q.Get("order_id")),
			Page:      page,
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "", commissionListResponse{
			Commissions: toCommissionResponses(list.Commissions),
			Pagination:  toPaginationResponse(list.Pagination),
		})
	}
}

func HandleGetCommission(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.GetCommission(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "", toCommissionResponse(c))
	}
}

type payoutListResponse struct {
	Payouts    []payoutResponse   `json:"payouts"`
	Pagination paginationResponse `json:"pagination"`
}

func HandleListPayouts(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := parsePage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		payeeType, err := optionalPayeeType(q.Get("payee_type"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}

		list, err := svc.ListPayouts(r.Context(), app.PayoutFilter{
			Status:    domain.PayoutStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
			PayeeID:   strings.TrimSpace(q.Get("payee_id")),
			PayeeType: payeeType,
			Page:      page,
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		payouts := make([]payoutResponse, 0, len(list.Payouts))
		for _, v := range list.Payouts {
			payouts = append(payouts, toPayoutViewResponse(v))
		}
		writeSuccess(w, http.StatusOK, "", payoutListResponse{
			Payouts:    payouts,
			Pagination: toPaginationResponse(list.Pagination),
		})
	}
}

func HandleGetPayout(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetPayout(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "", toPayoutViewResponse(view))
	}
}

type currencyAmountResponse struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type payoutStatusStatsResponse struct {
	Status  string                   `json:"status"`
	Count   int                      `json:"count"`
	Amounts []currencyAmountResponse `json:"amounts"`
}

type payoutStatsResponse struct {
	Statuses     []payoutStatusStatsResponse `json:"statuses"`
	TotalBase    decimal.Decimal             `json:"total_base"`
	BaseCurrency string                      `json:"base_currency"`
}

func HandlePayoutStats(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseStatsFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		stats, err := svc.PayoutStats(r.Context(), filter)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}

		resp := payoutStatsResponse{
			Statuses:     make([]payoutStatusStatsResponse, 0, len(stats.Statuses)),
			TotalBase:    stats.TotalBase,
			BaseCurrency: stats.Base,
		}
		for _, st := range stats.Statuses {
			amounts := make([]currencyAmountResponse, 0, len(st.Amounts))
			for _, a := range st.Amounts {
				amounts = append(amounts, currencyAmountResponse{Currency: a.Currency, Amount: a.Amount})
			}
			resp.Statuses = append(resp.Statuses, payoutStatusStatsResponse{
				Status:  string(st.Status),
				Count:   st.Count,
				Amounts: amounts,
			})
		}
		writeSuccess(w, http.StatusOK, "", resp)
	}
}

type commissionStatsResponse struct {
	Status     string          `json:"status"`
	Currency   string          `json:"currency"`
	Count      int             `json:"count"`
	Net        decimal.Decimal `json:"net_amount"`
	Commission decimal.Decimal `json:"commission_amount"`
}

func HandleCommissionStats(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseStatsFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		stats, err := svc.CommissionStats(r.Context(), filter)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		resp := make([]commissionStatsResponse, 0, len(stats))
		for _, s := range stats {
			resp = append(resp, commissionStatsResponse{
				Status:     string(s.Status),
				Currency:   s.Currency,
				Count:      s.Count,
				Net:        s.Net,
				Commission: s.Commission,
			})
		}
		writeSuccess(w, http.StatusOK, "", resp)
	}
}

type escrowBalanceResponse struct {
	Currency string          `json:"currency"`
	Held     decimal.Decimal `json:"held"`
	Released decimal.Decimal `json:"released"`
	Refunded decimal.Decimal `json:"refunded"`
	Paid     decimal.Decimal `json:"paid"`
}

type escrowSummaryResponse struct {
	PayeeID       string                  `json:"payee_id"`
	PayeeType     string                  `json:"payee_type"`
	Balances      []escrowBalanceResponse `json:"balances"`
	NextHoldUntil *time.Time              `json:"next_hold_until,omitempty"`
}

func HandleEscrowSummary(svc SettlementQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payeeType, err := payeeTypeOrStore(r.URL.Query().Get("payee_type"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		summary, err := svc.EscrowSummary(r.Context(), payeeType, chi.URLParam(r, "payeeID"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		resp := escrowSummaryResponse{
			PayeeID:       summary.PayeeID,
			PayeeType:     string(summary.PayeeType),
			Balances:      make([]escrowBalanceResponse, 0, len(summary.Balances)),
			NextHoldUntil: summary.NextHoldUntil,
		}
		for _, b := range summary.Balances {
			resp.Balances = append(resp.Balances, escrowBalanceResponse{
				Currency: b.Currency,
				Held:     b.Held,
				Released: b.Released,
				Refunded: b.Refunded,
				Paid:     b.Paid,
			})
		}
		writeSuccess(w, http.StatusOK, "", resp)
	}
}
