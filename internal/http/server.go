// Package http serves the reporting API: three read models over the
// financial ledger plus thin record-creation endpoints that feed it.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"resto/internal/amqp"
	"resto/internal/cache"
	"resto/internal/core"
	"resto/internal/ratelimit"
	"resto/internal/reports"
	"resto/internal/storage"
)

// LedgerStore is what the server needs from persistence: the aggregator's
// read side plus the insert operations the record endpoints use.
type LedgerStore interface {
	reports.Source

	CreateRecurringExpense(ctx context.Context, scopeID int64, e core.RecurringExpense) (int64, error)
	CreateTransaction(ctx context.Context, scopeID int64, t core.Transaction) (int64, error)
	CreateWasteWithMirror(ctx context.Context, scopeID int64, w core.WasteRecord, mirrorCategory string) (int64, error)
	CreatePayrollRecord(ctx context.Context, scopeID int64, p core.PayrollRecord) (int64, error)
	CreateSale(ctx context.Context, scopeID int64, s core.Sale) (int64, error)
	CreateIngredient(ctx context.Context, scopeID int64, name string, costPerUnit core.Money) (int64, error)
	CreatePrepSession(ctx context.Context, scopeID int64, prepDate core.Date, usages []storage.PrepUsageInput) (int64, error)
}

// StatementPublisher hands a generated statement to the downstream renderer.
type StatementPublisher interface {
	PublishStatementReady(ctx context.Context, msg *amqp.StatementReadyMessage) error
}

type Options struct {
	CacheSize         int
	CacheTTL          time.Duration
	RequestsPerMinute int
}

type Server struct {
	http.Server

	store     LedgerStore
	agg       *reports.Aggregator
	publisher StatementPublisher // nil disables statement events

	dailyCache     *cache.LRUCache[[]reports.DailyPoint]
	breakdownCache *cache.LRUCache[reports.Breakdown]
	statementCache *cache.LRUCache[reports.Statement]
	limiter        *ratelimit.Limiter

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and report caches, returning a ready-to-run
// http.Server.
func NewServer(addr string, store LedgerStore, publisher StatementPublisher, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 200
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:            store,
		agg:              reports.NewAggregator(store),
		publisher:        publisher,
		dailyCache:       cache.NewLRUCache[[]reports.DailyPoint](opts.CacheSize, opts.CacheTTL),
		breakdownCache:   cache.NewLRUCache[reports.Breakdown](opts.CacheSize, opts.CacheTTL),
		statementCache:   cache.NewLRUCache[reports.Statement](opts.CacheSize, opts.CacheTTL),
		limiter:          ratelimit.NewLimiter(opts.RequestsPerMinute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/reports/daily", s.withRequestLog(s.handleDailySeries))
	mux.HandleFunc("/api/reports/categories", s.withRequestLog(s.handleCategoryBreakdown))
	mux.HandleFunc("/api/reports/statement", s.withRequestLog(s.handleStatement))

	mux.HandleFunc("/api/records/recurring", s.withRequestLog(s.handleCreateRecurring))
	mux.HandleFunc("/api/records/transactions", s.withRequestLog(s.handleCreateTransaction))
	mux.HandleFunc("/api/records/waste", s.withRequestLog(s.handleCreateWaste))
	mux.HandleFunc("/api/records/payroll", s.withRequestLog(s.handleCreatePayroll))
	mux.HandleFunc("/api/records/sales", s.withRequestLog(s.handleCreateSale))
	mux.HandleFunc("/api/records/ingredients", s.withRequestLog(s.handleCreateIngredient))
	mux.HandleFunc("/api/records/prep", s.withRequestLog(s.handleCreatePrepSession))

	return s
}

// startCacheCleanup periodically drops expired report entries.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.dailyCache.CleanExpired() + s.breakdownCache.CleanExpired() + s.statementCache.CleanExpired()
			if cleaned > 0 {
				slog.Debug("Report cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateScope drops every cached report of a scope after a write.
func (s *Server) invalidateScope(scopeID int64) {
	prefix := strconv.FormatInt(scopeID, 10) + "|"
	s.dailyCache.DeletePrefix(prefix)
	s.breakdownCache.DeletePrefix(prefix)
	s.statementCache.DeletePrefix(prefix)
}

func reportCacheKey(scopeID int64, start, end core.Date) string {
	return strconv.FormatInt(scopeID, 10) + "|" + start.Key() + "|" + end.Key()
}

// withRequestLog adds security headers, a request id, and request logging.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ratelimit.ClientIP(r)
		if !s.limiter.Allow(clientIP) {
			slog.Warn("Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
