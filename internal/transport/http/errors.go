package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"go.uber.org/zap"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = domain.CodeNotFound
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidQuery         = "invalid_query"
	codeMissingRequiredField = "missing_required_field"
	codeForbidden            = "forbidden"
	codeInternalError        = domain.CodeInternal
)

type errorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, successResponse{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorDetails(w, status, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error:   msg,
		Code:    code,
		Details: details,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a settlement error to its HTTP status. Errors outside
// the settlement taxonomy are logged and reported as internal errors.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := domain.Code(err)
	if code == domain.CodeInternal {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrIdempotencyConflict):
		status = http.StatusConflict
	}

	var details map[string]any
	var stateErr *domain.StateError
	if errors.As(err, &stateErr) {
		details = map[string]any{
			"entity": stateErr.Entity,
			"id":     stateErr.ID,
			"status": stateErr.Status,
			"action": stateErr.Action,
		}
	}
	writeErrorDetails(w, status, code, err.Error(), details)
}
