package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

// PayoutAggregator groups a payee's available commissions into payouts.
type PayoutAggregator interface {
	Aggregate(ctx context.Context, in app.AggregateInput) ([]app.Candidate, error)
	CreatePayouts(ctx context.Context, in app.AggregateInput, actor string) (app.AggregationResult, error)
}

// HandleAggregatePreview lists the payouts that would be created for a payee
// without creating them.
func HandleAggregatePreview(svc PayoutAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		payeeType, err := payeeTypeOrStore(q.Get("payee_type"))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		start, err := parseTime(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}
		end, err := parseTime(q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
			return
		}

		candidates, err := svc.Aggregate(r.Context(), app.AggregateInput{
			PayeeID:   chi.URLParam(r, "payeeID"),
			PayeeType: payeeType,
			Start:     start,
			End:       end,
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "", toCandidateResponses(candidates))
	}
}

type createPayeePayoutsRequest struct {
	PayeeType   string    `json:"payee_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type groupFailureResponse struct {
	Currency string `json:"currency"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

type aggregationResponse struct {
	Created []payoutResponse       `json:"created"`
	Skipped []candidateResponse    `json:"skipped"`
	Failed  []groupFailureResponse `json:"failed"`
}

// HandleCreatePayeePayouts creates one payout per eligible currency of a
// payee. Currencies that fail are reported next to the created payouts.
func HandleCreatePayeePayouts(svc PayoutAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPayeePayoutsRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		payeeType, err := payeeTypeOrStore(req.PayeeType)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}

		result, err := svc.CreatePayouts(r.Context(), app.AggregateInput{
			PayeeID:   chi.URLParam(r, "payeeID"),
			PayeeType: payeeType,
			Start:     req.PeriodStart,
			End:       req.PeriodEnd,
		}, actorFrom(r))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}

		resp := aggregationResponse{
			Created: make([]payoutResponse, 0, len(result.Created)),
			Skipped: toCandidateResponses(result.Skipped),
			Failed:  make([]groupFailureResponse, 0, len(result.Failed)),
		}
		for _, p := range result.Created {
			resp.Created = append(resp.Created, toPayoutResponse(p))
		}
		for _, f := range result.Failed {
			resp.Failed = append(resp.Failed, groupFailureResponse{
				Currency: f.Currency,
				Error:    f.Err.Error(),
				Code:     domain.Code(f.Err),
			})
		}

		status := http.StatusOK
		if len(result.Created) > 0 {
			status = http.StatusCreated
		}
		writeSuccess(w, status, "Payouts created", resp)
	}
}
