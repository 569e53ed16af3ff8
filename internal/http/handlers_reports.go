package http

import (
	"log/slog"
	"net/http"

	"resto/internal/amqp"
)

func (s *Server) handleDailySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportCacheKey(q.scopeID, q.start, q.end)
	if series, ok := s.dailyCache.Get(key); ok {
		writeJSON(w, http.StatusOK, series)
		return
	}

	series, err := s.agg.DailySeries(r.Context(), q.scopeID, q.start, q.end)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build daily series", "scope_id", q.scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build daily series")
		return
	}

	s.dailyCache.Set(key, series)
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportCacheKey(q.scopeID, q.start, q.end)
	if breakdown, ok := s.breakdownCache.Get(key); ok {
		writeJSON(w, http.StatusOK, breakdown)
		return
	}

	breakdown, err := s.agg.CategoryBreakdown(r.Context(), q.scopeID, q.start, q.end)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build category breakdown", "scope_id", q.scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build category breakdown")
		return
	}

	s.breakdownCache.Set(key, breakdown)
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := reportCacheKey(q.scopeID, q.start, q.end)
	if st, ok := s.statementCache.Get(key); ok {
		writeJSON(w, http.StatusOK, st)
		return
	}

	st, err := s.agg.Statement(r.Context(), q.scopeID, q.start, q.end)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build statement", "scope_id", q.scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build statement")
		return
	}

	if s.publisher != nil {
		msg := amqp.NewStatementReadyMessage(q.scopeID, *st)
		if err := s.publisher.PublishStatementReady(r.Context(), msg); err != nil {
			// The caller still gets the statement; archival catches up later.
			slog.ErrorContext(r.Context(), "Failed to publish statement event", "scope_id", q.scopeID, "error", err)
		}
	}

	s.statementCache.Set(key, *st)
	writeJSON(w, http.StatusOK, st)
}
