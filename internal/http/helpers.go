package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"resto/internal/core"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return core.DateOf(t), nil
}

// reportQuery is the resolved query of a report endpoint: a scope and an
// inclusive date range.
type reportQuery struct {
	scopeID int64
	start   core.Date
	end     core.Date
}

// parseReportQuery reads scope plus either an explicit start/end pair or the
// days=N shorthand, which resolves to the trailing N days ending today.
func parseReportQuery(r *http.Request) (reportQuery, error) {
	q := r.URL.Query()

	scopeID, err := strconv.ParseInt(q.Get("scope"), 10, 64)
	if err != nil || scopeID <= 0 {
		return reportQuery{}, errors.New("scope must be a positive integer")
	}

	if daysStr := q.Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			return reportQuery{}, errors.New("days must be a positive integer")
		}
		end := core.DateOf(time.Now())
		start := core.DateOf(end.AddDate(0, 0, -(days - 1)))
		return reportQuery{scopeID: scopeID, start: start, end: end}, nil
	}

	start, err := parseDate(q.Get("start"))
	if err != nil {
		return reportQuery{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		return reportQuery{}, fmt.Errorf("end: %w", err)
	}
	if end.Before(start.Time) {
		return reportQuery{}, errors.New("end must not precede start")
	}
	return reportQuery{scopeID: scopeID, start: start, end: end}, nil
}

// decodeBody strictly decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseScopeID(r *http.Request) (int64, error) {
	scopeID, err := strconv.ParseInt(r.URL.Query().Get("scope"), 10, 64)
	if err != nil || scopeID <= 0 {
		return 0, errors.New("scope must be a positive integer")
	}
	return scopeID, nil
}
