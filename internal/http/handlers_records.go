package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"resto/internal/core"
	"resto/internal/storage"
)

type createdResponse struct {
	ID int64 `json:"id"`
}

type recurringRequest struct {
	Amount    string `json:"amount"`
	Cadence   string `json:"cadence"`
	Category  string `json:"category"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req recurringRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = parseDate(req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	expense := core.RecurringExpense{
		Amount:    core.Money{Cents: cents},
		Cadence:   core.Cadence(strings.ToLower(req.Cadence)),
		Category:  strings.TrimSpace(req.Category),
		StartDate: start,
		EndDate:   end,
	}
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateRecurringExpense(r.Context(), scopeID, expense)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create recurring expense", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create recurring expense")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type transactionRequest struct {
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Note     string `json:"note"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn := core.Transaction{
		Amount:   core.Money{Cents: cents},
		Category: strings.TrimSpace(req.Category),
		Date:     date,
		Note:     req.Note,
	}
	if err := txn.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateTransaction(r.Context(), scopeID, txn)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create transaction", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type wasteRequest struct {
	Cost   string `json:"cost"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// handleCreateWaste records a waste entry and its mirroring transaction in
// one store call, so a partial failure never persists an unpaired waste row.
func (s *Server) handleCreateWaste(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req wasteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Cost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cost")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record := core.WasteRecord{
		Cost:   core.Money{Cents: cents},
		Date:   date,
		Reason: req.Reason,
	}
	if err := record.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateWasteWithMirror(r.Context(), scopeID, record, "Waste")
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create waste record", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create waste record")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type payrollRequest struct {
	TotalPaid  string `json:"total_paid"`
	Status     string `json:"status"`
	PaidDate   string `json:"paid_date"`
	PeriodDate string `json:"period_date"`
}

func (s *Server) handleCreatePayroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req payrollRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.TotalPaid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total_paid")
		return
	}
	var paid, period core.Date
	if req.PaidDate != "" {
		if paid, err = parseDate(req.PaidDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.PeriodDate != "" {
		if period, err = parseDate(req.PeriodDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	record := core.PayrollRecord{
		TotalPaid:  core.Money{Cents: cents},
		Status:     core.PayrollStatus(strings.ToLower(req.Status)),
		PaidDate:   paid,
		PeriodDate: period,
	}
	if err := record.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreatePayrollRecord(r.Context(), scopeID, record)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create payroll record", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create payroll record")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type saleItemRequest struct {
	Name     string `json:"name"`
	Cost     string `json:"cost"`
	Quantity int64  `json:"quantity"`
}

type saleRequest struct {
	Timestamp string            `json:"timestamp"`
	Total     string            `json:"total"`
	Status    string            `json:"status"`
	Items     []saleItemRequest `json:"items"`
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req saleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp: expected RFC3339")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid total")
		return
	}

	items := make([]core.SaleLineItem, 0, len(req.Items))
	for _, it := range req.Items {
		itemCents, err := core.ParseDecimalToCents(it.Cost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid item cost")
			return
		}
		items = append(items, core.SaleLineItem{
			Name:     it.Name,
			Cost:     core.Money{Cents: itemCents},
			Quantity: it.Quantity,
		})
	}

	sale := core.Sale{
		Timestamp: ts.UTC(),
		Total:     core.Money{Cents: cents},
		Status:    core.SaleStatus(strings.ToLower(req.Status)),
		Items:     items,
	}
	if err := sale.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateSale(r.Context(), scopeID, sale)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create sale", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create sale")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type ingredientRequest struct {
	Name        string `json:"name"`
	CostPerUnit string `json:"cost_per_unit"`
}

func (s *Server) handleCreateIngredient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ingredientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	cents, err := core.ParseDecimalToCents(req.CostPerUnit)
	if err != nil || cents < 0 {
		writeError(w, http.StatusBadRequest, "invalid cost_per_unit")
		return
	}

	id, err := s.store.CreateIngredient(r.Context(), scopeID, name, core.Money{Cents: cents})
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create ingredient", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create ingredient")
		return
	}

	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type prepUsageRequest struct {
	IngredientID int64   `json:"ingredient_id"`
	QuantityUsed float64 `json:"quantity_used"`
}

type prepSessionRequest struct {
	PrepDate string             `json:"prep_date"`
	Usages   []prepUsageRequest `json:"usages"`
}

func (s *Server) handleCreatePrepSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	scopeID, err := parseScopeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req prepSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prepDate, err := parseDate(req.PrepDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Usages) == 0 {
		writeError(w, http.StatusBadRequest, "at least one usage is required")
		return
	}
	usages := make([]storage.PrepUsageInput, 0, len(req.Usages))
	for _, u := range req.Usages {
		if u.IngredientID <= 0 || u.QuantityUsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid usage")
			return
		}
		usages = append(usages, storage.PrepUsageInput{
			IngredientID: u.IngredientID,
			QuantityUsed: u.QuantityUsed,
		})
	}

	id, err := s.store.CreatePrepSession(r.Context(), scopeID, prepDate, usages)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create prep session", "scope_id", scopeID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create prep session")
		return
	}

	s.invalidateScope(scopeID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}
