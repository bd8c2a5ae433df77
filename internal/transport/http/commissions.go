package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/clock"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

// CommissionCapturer records the commission of a captured order line.
type CommissionCapturer interface {
	Capture(ctx context.Context, line domain.OrderLine) (app.CaptureResult, error)
}

// EscrowManager moves commissions out of escrow.
type EscrowManager interface {
	Release(ctx context.Context, in app.ReleaseInput) (domain.Commission, error)
	Refund(ctx context.Context, commissionID, reason string) (domain.Commission, error)
	RefundOrder(ctx context.Context, orderID, reason string) (app.RefundOrderResult, error)
	ReleaseEligible(ctx context.Context, asOf time.Time) (app.SweepResult, error)
}

type captureCommissionRequest struct {
	OrderID    string          `json:"order_id"`
	PayeeID    string          `json:"payee_id"`
	PayeeType  string          `json:"payee_type"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CapturedAt *time.Time      `json:"captured_at"`
}

func (r captureCommissionRequest) missingField() string {
	switch {
	case strings.TrimSpace(r.OrderID) == "":
		return "order_id"
	case strings.TrimSpace(r.PayeeID) == "":
		return "payee_id"
	case strings.TrimSpace(r.PayeeType) == "":
		return "payee_type"
	}
	return ""
}

// HandleCaptureCommission records the commission of one order line. A repeated
// capture returns the stored commission with status 200.
func HandleCaptureCommission(svc CommissionCapturer, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req captureCommissionRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if field := req.missingField(); field != "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, field+" is required")
			return
		}
		payeeType, err := domain.ParsePayeeType(req.PayeeType)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		capturedAt := clk.Now()
		if req.CapturedAt != nil {
			capturedAt = req.CapturedAt.UTC()
		}

		result, err := svc.Capture(r.Context(), domain.OrderLine{
			OrderID:    strings.TrimSpace(req.OrderID),
			PayeeID:    strings.TrimSpace(req.PayeeID),
			PayeeType:  payeeType,
			Amount:     req.Amount,
			Currency:   req.Currency,
			CapturedAt: capturedAt,
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		if !result.Created {
			writeSuccess(w, http.StatusOK, "Commission already captured", toCommissionResponse(result.Commission))
			return
		}
		writeSuccess(w, http.StatusCreated, "Commission captured", toCommissionResponse(result.Commission))
	}
}

type releaseCommissionRequest struct {
	// Force releases before holdUntil.
	Force bool `json:"force"`
}

func HandleReleaseCommission(svc EscrowManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req releaseCommissionRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		mode := app.ReleaseScheduled
		if req.Force {
			mode = app.ReleaseManual
		}
		c, err := svc.Release(r.Context(), app.ReleaseInput{
			CommissionID: chi.URLParam(r, "id"),
			Mode:         mode,
			Actor:        actorFrom(r),
		})
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "Commission released", toCommissionResponse(c))
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func HandleRefundCommission(svc EscrowManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		c, err := svc.Refund(r.Context(), chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "Commission refunded", toCommissionResponse(c))
	}
}

type refundOrderResponse struct {
	Refunded  []commissionResponse `json:"refunded"`
	Untouched []commissionResponse `json:"untouched"`
}

// HandleCancelOrderCommissions refunds the held commissions of a cancelled
// order.
func HandleCancelOrderCommissions(svc EscrowManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		result, err := svc.RefundOrder(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "Order commissions refunded", refundOrderResponse{
			Refunded:  toCommissionResponses(result.Refunded),
			Untouched: toCommissionResponses(result.Untouched),
		})
	}
}

type releaseEligibleRequest struct {
	AsOf *time.Time `json:"as_of"`
}

type sweepResponse struct {
	AsOf      time.Time `json:"as_of"`
	Processed int       `json:"processed"`
	Released  int       `json:"released"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// HandleReleaseEligible runs one escrow sweep on demand.
func HandleReleaseEligible(svc EscrowManager, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req releaseEligibleRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		asOf := clk.Now()
		if req.AsOf != nil {
			asOf = req.AsOf.UTC()
		}
		result, err := svc.ReleaseEligible(r.Context(), asOf)
		if err != nil {
			writeServiceError(w, loggerFrom(r.Context()), err)
			return
		}
		writeSuccess(w, http.StatusOK, "Escrow sweep finished", sweepResponse{
			AsOf:      asOf,
			Processed: result.Processed,
			Released:  result.Released,
			Skipped:   result.Skipped,
			Failed:    result.Failed,
		})
	}
}
