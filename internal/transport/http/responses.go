package http

import (
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

type commissionResponse struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	PayeeID          string          `json:"payee_id"`
	PayeeType        string          `json:"payee_type"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Currency         string          `json:"currency"`
	RateApplied      decimal.Decimal `json:"rate_applied"`
	Status           string          `json:"status"`
	HoldUntil        time.Time       `json:"hold_until"`
	CapturedAt       time.Time       `json:"captured_at"`
	PayoutID         string          `json:"payout_id,omitempty"`
	ReleasedAt       *time.Time      `json:"released_at,omitempty"`
	ReleasedBy       string          `json:"released_by,omitempty"`
	RefundedAt       *time.Time      `json:"refunded_at,omitempty"`
	RefundReason     string          `json:"refund_reason,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

func toCommissionResponse(c domain.Commission) commissionResponse {
	return commissionResponse{
		ID:               c.ID,
		OrderID:          c.OrderID,
		PayeeID:          c.PayeeID,
		PayeeType:        string(c.PayeeType),
		OrderAmount:      c.OrderAmount,
		CommissionAmount: c.CommissionAmount,
		NetAmount:        c.NetAmount,
		Currency:         c.Currency,
		RateApplied:      c.RateApplied,
		Status:           string(c.Status),
		HoldUntil:        c.HoldUntil,
		CapturedAt:       c.CapturedAt,
		PayoutID:         c.PayoutID,
		ReleasedAt:       c.ReleasedAt,
		ReleasedBy:       c.ReleasedBy,
		RefundedAt:       c.RefundedAt,
		RefundReason:     c.RefundReason,
		PaidAt:           c.PaidAt,
	}
}

func toCommissionResponses(cs []domain.Commission) []commissionResponse {
	out := make([]commissionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCommissionResponse(c))
	}
	return out
}

type payeeResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type payoutResponse struct {
	ID                    string               `json:"id"`
	PayeeID               string               `json:"payee_id"`
	PayeeType             string               `json:"payee_type"`
	Amount                decimal.Decimal      `json:"amount"`
	Currency              string               `json:"currency"`
	PeriodStart           time.Time            `json:"period_start"`
	PeriodEnd             time.Time            `json:"period_end"`
	CommissionCount       int                  `json:"commission_count"`
	Status                string               `json:"status"`
	PaymentMethod         string               `json:"payment_method,omitempty"`
	PaymentReference      string               `json:"payment_reference,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
	ProcessedAt           *time.Time           `json:"processed_at,omitempty"`
	ProcessedBy           string               `json:"processed_by,omitempty"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	CancelledAt           *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason          string               `json:"cancel_reason,omitempty"`
	FailedAt              *time.Time           `json:"failed_at,omitempty"`
	FailureReason         string               `json:"failure_reason,omitempty"`
	CommissionsReleasedAt *time.Time           `json:"commissions_released_at,omitempty"`
	CreatedBy             string               `json:"created_by,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	Payee                 *payeeResponse       `json:"payee,omitempty"`
	Commissions           []commissionResponse `json:"commissions,omitempty"`
}

func toPayoutResponse(p domain.Payout) payoutResponse {
	return payoutResponse{
		ID:                    p.ID,
		PayeeID:               p.PayeeID,
		PayeeType:             string(p.PayeeType),
		Amount:                p.Amount,
		Currency:              p.Currency,
		PeriodStart:           p.PeriodStart,
		PeriodEnd:             p.PeriodEnd,
		CommissionCount:       p.CommissionCount,
		Status:                string(p.Status),
		PaymentMethod:         p.PaymentMethod,
		PaymentReference:      p.PaymentReference,
		Notes:                 p.Notes,
		ProcessedAt:           p.ProcessedAt,
		ProcessedBy:           p.ProcessedBy,
		CompletedAt:           p.CompletedAt,
		CancelledAt:           p.CancelledAt,
		CancelReason:          p.CancelReason,
		FailedAt:              p.FailedAt,
		FailureReason:         p.FailureReason,
		CommissionsReleasedAt: p.CommissionsReleasedAt,
		CreatedBy:             p.CreatedBy,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func toPayoutViewResponse(v domain.PayoutView) payoutResponse {
	resp := toPayoutResponse(v.Payout)
	if v.Payee != nil {
		resp.Payee = &payeeResponse{
			ID:    v.Payee.ID,
			Type:  string(v.Payee.Type),
			Name:  v.Payee.Name,
			Email: v.Payee.Email,
		}
	}
	if len(v.Commissions) > 0 {
		resp.Commissions = toCommissionResponses(v.Commissions)
	}
	return resp
}

type paginationResponse struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func toPaginationResponse(p app.Pagination) paginationResponse {
	return paginationResponse{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
}

type candidateResponse struct {
	Currency      string          `json:"currency"`
	Total         decimal.Decimal `json:"total"`
	Count         int             `json:"commission_count"`
	Eligible      bool            `json:"eligible"`
	CommissionIDs []string        `json:"commission_ids"`
}

func toCandidateResponses(cs []app.Candidate) []candidateResponse {
	out := make([]candidateResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, candidateResponse{
			Currency:      c.Currency,
			Total:         c.Total,
			Count:         len(c.Commissions),
			Eligible:      c.Eligible,
			CommissionIDs: c.CommissionIDs(),
		})
	}
	return out
}

type currencyResponse struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	RateToBase     decimal.Decimal `json:"rate_to_base"`
	DecimalDigits  int32           `json:"decimal_digits"`
	SymbolPosition string          `json:"symbol_position"`
	Active         bool            `json:"is_active"`
}

func toCurrencyResponse(c domain.CurrencyRate) currencyResponse {
	return currencyResponse{
		Code:           c.Code,
		Name:           c.Name,
		Symbol:         c.Symbol,
		RateToBase:     c.RateToBase,
		DecimalDigits:  c.DecimalDigits,
		SymbolPosition: string(c.SymbolPosition),
		Active:         c.Active,
	}
}
