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

// PayoutManager drives payouts through their lifecycle.
type PayoutManager interface {
	Create(ctx context.Context, in app.CreatePayoutInput) (domain.Payout, error)
	Process(ctx context.Context, in app.ProcessPayoutInput) (domain.Payout, error)
	Complete(ctx context.Context, payoutID, actor string) (domain.Payout, error)
	Cancel(ctx context.Context, payoutID, reason, actor string) (domain.Payout, error)
	Fail(ctx context.Context, payoutID, reason, actor string) (domain.Payout, error)
	ReleaseCommissions(ctx context.Context, payoutID, actor string) (domain.Payout, error)
}

type createPayoutRequest struct {
	PayeeID         string          `json:"payee_id"`
	PayeeType       string          `json:"payee_type"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	CommissionIDs   []string        `json:"commission_ids"`
	CommissionCount int             `json:"commission_count"`
	// DeliveryCount is accepted for delivery provider clients.
	DeliveryCount int `json:"delivery_count"`
}

func HandleCreatePayout(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPayoutRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.PayeeID) == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "payee_id is required")
			return
		}
		payeeType, err := payeeTypeOrStore(req.PayeeType)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		count := req.CommissionCount
		if count == 0 {
			count = req.DeliveryCount
		}

		payout, err := svc.Create(r.Context(), app.CreatePayoutInput{
			PayeeID:         req.PayeeID,
			PayeeType:       payeeType,
			Amount:          req.Amount,
			Currency:        req.Currency,
			PeriodStart:     req.PeriodStart,
			PeriodEnd:       req.PeriodEnd,
			CommissionIDs:   req.CommissionIDs,
			CommissionCount: count,
			Actor:           actorFrom(r),
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusCreated, domain.MsgPayoutCreated, toPayoutResponse(payout))
	}
}

type processPayoutRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`
}

func HandleProcessPayout(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processPayoutRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		payout, err := svc.Process(r.Context(), app.ProcessPayoutInput{
			PayoutID:         chi.URLParam(r, "id"),
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			Notes:            req.Notes,
			Actor:            actorFrom(r),
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, domain.MsgPayoutProcessing, toPayoutResponse(payout))
	}
}

func HandleCompletePayout(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payout, err := svc.Complete(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, domain.MsgPayoutCompleted, toPayoutResponse(payout))
	}
}

func HandleCancelPayout(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		payout, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, domain.MsgPayoutCancelled, toPayoutResponse(payout))
	}
}

func HandleFailPayout(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		payout, err := svc.Fail(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, domain.MsgPayoutFailed, toPayoutResponse(payout))
	}
}

func HandleReleasePayoutCommissions(svc PayoutManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payout, err := svc.ReleaseCommissions(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, domain.MsgPayoutCommissionsReleased, toPayoutResponse(payout))
	}
}
