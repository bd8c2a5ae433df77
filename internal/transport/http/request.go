package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/app"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

// ActorHeader carries the operator or system id performing a mutation.
// Authentication happens upstream.
const ActorHeader = "X-Actor-ID"

func actorFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// decodeJSON decodes the request body into dst. An empty body is accepted
// when optional is true.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func parsePage(r *http.Request) (app.Page, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"))
	if err != nil {
		return app.Page{}, fmt.Errorf("page: %w", err)
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		return app.Page{}, fmt.Errorf("limit: %w", err)
	}
	return app.Page{Page: page, Limit: limit}, nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseTime accepts RFC3339 or a plain date. Empty input yields the zero time.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t.UTC(), nil
}

// optionalPayeeType parses a payee type filter; empty means any.
func optionalPayeeType(s string) (domain.PayeeType, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return domain.ParsePayeeType(s)
}

// payeeTypeOrStore parses the payee type of a payee scoped route. Stores are
// the default payee.
func payeeTypeOrStore(s string) (domain.PayeeType, error) {
	if strings.TrimSpace(s) == "" {
		return domain.PayeeStore, nil
	}
	return domain.ParsePayeeType(s)
}

func parseStatsFilter(r *http.Request) (app.StatsFilter, error) {
	q := r.URL.Query()
	payeeType, err := optionalPayeeType(q.Get("payee_type"))
	if err != nil {
		return app.StatsFilter{}, err
	}
	from, err := parseTime(q.Get("from"))
	if err != nil {
		return app.StatsFilter{}, err
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		return app.StatsFilter{}, err
	}
	return app.StatsFilter{
		PayeeID:   strings.TrimSpace(q.Get("payee_id")),
		PayeeType: payeeType,
		From:      from,
		To:        to,
	}, nil
}
