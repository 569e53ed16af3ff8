package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resto/internal/core"
	"resto/internal/storage"
)

type stubStore struct {
	expenses     []core.RecurringExpense
	transactions []core.Transaction
	waste        []core.WasteRecord
	payroll      []core.PayrollRecord
	sales        []core.Sale
	prep         []core.PrepSession

	readCalls int
	nextID    int64
	mirrorErr error
}

func (s *stubStore) RecurringExpenses(ctx context.Context, scopeID int64) ([]core.RecurringExpense, error) {
	s.readCalls++
	return s.expenses, nil
}

func (s *stubStore) TransactionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Transaction, error) {
	return s.transactions, nil
}

func (s *stubStore) WasteInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.WasteRecord, error) {
	return s.waste, nil
}

func (s *stubStore) PayrollInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PayrollRecord, error) {
	return s.payroll, nil
}

func (s *stubStore) SalesInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Sale, error) {
	return s.sales, nil
}

func (s *stubStore) PrepSessionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PrepSession, error) {
	return s.prep, nil
}

func (s *stubStore) CreateRecurringExpense(ctx context.Context, scopeID int64, e core.RecurringExpense) (int64, error) {
	s.nextID++
	e.ID = s.nextID
	s.expenses = append(s.expenses, e)
	return s.nextID, nil
}

func (s *stubStore) CreateTransaction(ctx context.Context, scopeID int64, t core.Transaction) (int64, error) {
	s.nextID++
	t.ID = s.nextID
	s.transactions = append(s.transactions, t)
	return s.nextID, nil
}

func (s *stubStore) CreateWasteWithMirror(ctx context.Context, scopeID int64, w core.WasteRecord, mirrorCategory string) (int64, error) {
	if s.mirrorErr != nil {
		return 0, s.mirrorErr
	}
	s.nextID++
	w.ID = s.nextID
	s.waste = append(s.waste, w)
	wasteID := w.ID
	s.nextID++
	s.transactions = append(s.transactions, core.Transaction{
		ID:            s.nextID,
		Amount:        w.Cost,
		Category:      mirrorCategory,
		Date:          w.Date,
		Note:          w.Reason,
		WasteRecordID: &wasteID,
	})
	return wasteID, nil
}

func (s *stubStore) CreatePayrollRecord(ctx context.Context, scopeID int64, p core.PayrollRecord) (int64, error) {
	s.nextID++
	s.payroll = append(s.payroll, p)
	return s.nextID, nil
}

func (s *stubStore) CreateSale(ctx context.Context, scopeID int64, sale core.Sale) (int64, error) {
	s.nextID++
	s.sales = append(s.sales, sale)
	return s.nextID, nil
}

func (s *stubStore) CreateIngredient(ctx context.Context, scopeID int64, name string, costPerUnit core.Money) (int64, error) {
	s.nextID++
	return s.nextID, nil
}

func (s *stubStore) CreatePrepSession(ctx context.Context, scopeID int64, prepDate core.Date, usages []storage.PrepUsageInput) (int64, error) {
	s.nextID++
	return s.nextID, nil
}

func newTestServer(t *testing.T, store *stubStore) *Server {
	t.Helper()
	srv := NewServer(":0", store, nil, Options{CacheSize: 10, CacheTTL: time.Minute})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestDailySeriesEndpoint(t *testing.T) {
	store := &stubStore{
		sales: []core.Sale{{
			Timestamp: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
			Total:     core.Money{Cents: 50_000},
			Status:    core.SaleCompleted,
		}},
	}
	srv := newTestServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/daily?scope=1&start=2024-03-01&end=2024-03-07", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var series []struct {
		Date    string  `json:"date"`
		Revenue float64 `json:"revenue"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&series); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("len(series) = %d, want 7", len(series))
	}
	if series[4].Date != "2024-03-05" || series[4].Revenue != 500 {
		t.Errorf("day 5 = %+v, want revenue 500 on 2024-03-05", series[4])
	}
}

func TestDailySeriesCached(t *testing.T) {
	store := &stubStore{}
	srv := newTestServer(t, store)

	url := "/api/reports/daily?scope=1&start=2024-03-01&end=2024-03-02"
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	if store.readCalls != 1 {
		t.Errorf("store reads = %d, want 1 (second request should hit cache)", store.readCalls)
	}
}

func TestCreateInvalidatesCache(t *testing.T) {
	store := &stubStore{}
	srv := newTestServer(t, store)

	url := "/api/reports/daily?scope=1&start=2024-03-01&end=2024-03-02"
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", rec.Code)
	}

	body := `{"amount":"12.50","category":"SUPPLIES","date":"2024-03-01","note":"napkins"}`
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/transactions?scope=1", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reread status = %d", rec.Code)
	}
	if store.readCalls != 2 {
		t.Errorf("store reads = %d, want 2 (write should invalidate the cache)", store.readCalls)
	}
}

func TestReportQueryValidation(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	tests := []struct {
		name string
		url  string
	}{
		{"missing scope", "/api/reports/daily?start=2024-03-01&end=2024-03-02"},
		{"zero scope", "/api/reports/daily?scope=0&start=2024-03-01&end=2024-03-02"},
		{"bad start", "/api/reports/daily?scope=1&start=March&end=2024-03-02"},
		{"missing end", "/api/reports/daily?scope=1&start=2024-03-01"},
		{"inverted range", "/api/reports/daily?scope=1&start=2024-03-10&end=2024-03-01"},
		{"negative days", "/api/reports/daily?scope=1&days=-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestDaysShorthand(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/daily?scope=1&days=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var series []struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&series); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("len(series) = %d, want 7", len(series))
	}
	if series[6].Date != core.DateOf(time.Now()).Key() {
		t.Errorf("last day = %s, want today", series[6].Date)
	}
}

func TestStatementEndpoint(t *testing.T) {
	store := &stubStore{
		expenses: []core.RecurringExpense{{
			Amount:    core.Money{Cents: 100_000},
			Cadence:   core.Monthly,
			Category:  "RENT",
			StartDate: core.NewDate(2024, 1, 1),
		}},
		sales: []core.Sale{{
			Timestamp: time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC),
			Total:     core.Money{Cents: 250_000},
			Status:    core.SaleCompleted,
			Items:     []core.SaleLineItem{{Name: "plate", Cost: core.Money{Cents: 40_000}, Quantity: 2}},
		}},
	}
	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/statement?scope=1&start=2024-03-01&end=2024-03-31", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var st struct {
		TotalRevenue  float64            `json:"totalRevenue"`
		TotalCOGS     float64            `json:"totalCOGS"`
		TotalExpenses float64            `json:"totalExpenses"`
		ByCategory    map[string]float64 `json:"expenseByCategory"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.TotalRevenue != 2500 {
		t.Errorf("TotalRevenue = %v, want 2500", st.TotalRevenue)
	}
	if st.TotalCOGS != 800 {
		t.Errorf("TotalCOGS = %v, want 800", st.TotalCOGS)
	}
	if st.TotalExpenses != 1000 {
		t.Errorf("TotalExpenses = %v, want 1000", st.TotalExpenses)
	}
	if st.ByCategory["RENT"] != 1000 {
		t.Errorf("RENT share = %v, want 1000", st.ByCategory["RENT"])
	}
}

func TestCreateWasteMirrorsTransaction(t *testing.T) {
	store := &stubStore{}
	srv := newTestServer(t, store)

	body := `{"cost":"35.00","date":"2024-03-12","reason":"walk-in failure"}`
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/waste?scope=1", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if len(store.waste) != 1 {
		t.Fatalf("waste records = %d, want 1", len(store.waste))
	}
	if len(store.transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(store.transactions))
	}
	mirror := store.transactions[0]
	if !mirror.WasteDerived() {
		t.Error("mirror transaction should reference the waste record")
	}
	if *mirror.WasteRecordID != store.waste[0].ID {
		t.Errorf("WasteRecordID = %d, want %d", *mirror.WasteRecordID, store.waste[0].ID)
	}
	if mirror.Amount.Cents != 3500 {
		t.Errorf("mirror amount = %d cents, want 3500", mirror.Amount.Cents)
	}
}

func TestCreateWasteFailureLeavesNoRecord(t *testing.T) {
	store := &stubStore{mirrorErr: errors.New("disk full")}
	srv := newTestServer(t, store)

	body := `{"cost":"35.00","date":"2024-03-12","reason":"walk-in failure"}`
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/waste?scope=1", strings.NewReader(body)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	if len(store.waste) != 0 {
		t.Errorf("waste records = %d, want 0 (failed create must persist nothing)", len(store.waste))
	}
	if len(store.transactions) != 0 {
		t.Errorf("transactions = %d, want 0 (failed create must persist nothing)", len(store.transactions))
	}
}

func TestCreateRecurringValidation(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	tests := []struct {
		name string
		body string
	}{
		{"bad amount", `{"amount":"abc","cadence":"monthly","start_date":"2024-01-01"}`},
		{"bad cadence", `{"amount":"10.00","cadence":"fortnightly","start_date":"2024-01-01"}`},
		{"missing start", `{"amount":"10.00","cadence":"monthly"}`},
		{"end before start", `{"amount":"10.00","cadence":"monthly","start_date":"2024-06-01","end_date":"2024-01-01"}`},
		{"unknown field", `{"amount":"10.00","cadence":"monthly","start_date":"2024-01-01","surprise":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/recurring?scope=1", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
}

func TestCreateSale(t *testing.T) {
	store := &stubStore{}
	srv := newTestServer(t, store)

	body := `{"timestamp":"2024-03-05T19:30:00Z","total":"89.90","status":"completed","items":[{"name":"ragu","cost":"6.20","quantity":3}]}`
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/sales?scope=1", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if len(store.sales) != 1 {
		t.Fatalf("sales = %d, want 1", len(store.sales))
	}
	sale := store.sales[0]
	if sale.Total.Cents != 8990 {
		t.Errorf("total = %d cents, want 8990", sale.Total.Cents)
	}
	if got := sale.COGS().Cents; got != 1860 {
		t.Errorf("COGS = %d cents, want 1860", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/daily?scope=1&days=1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST on report: status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/waste?scope=1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on record: status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
