package http

import (
	"net/http"
	"strings"
	"testing"
)

func TestHandleListCurrencies(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestRouter(&stubSettlement{}), http.MethodGet, "/currencies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"code":"RWF"`) || !strings.Contains(body, `"code":"USD"`) {
		t.Fatalf("expected both currencies, got %s", body)
	}
}

func TestHandleConvertCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "usd to rwf",
			query:          "?amount=100&from=usd&to=RWF",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"formatted":"129,870 RWF"`,
		},
		{
			name:           "same currency rounds",
			query:          "?amount=10.555&from=USD&to=USD",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"formatted":"$10.56"`,
		},
		{
			name:           "bad amount",
			query:          "?amount=ten&from=USD&to=RWF",
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeInvalidQuery,
		},
		{
			name:           "missing target",
			query:          "?amount=10&from=USD",
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeMissingRequiredField,
		},
		{
			name:           "unknown currency",
			query:          "?amount=10&from=USD&to=XYZ",
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: "unsupported_currency",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, newTestRouter(&stubSettlement{}), http.MethodGet, "/currencies/convert"+tt.query, "")
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}
