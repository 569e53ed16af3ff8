// Package storage persists the financial ledger in SQLite and serves the
// read-only record collections the aggregation engine consumes.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"resto/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// dateParam converts an optional date to its stored form (NULL when unset).
func dateParam(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.Key()
}

func parseStoredDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func scanNullDate(s sql.NullString) (core.Date, error) {
	if !s.Valid {
		return core.Date{}, nil
	}
	return parseStoredDate(s.String)
}

// RecurringExpenses returns every recurring expense of a scope, unfiltered
// by date: window clipping is the proration calculator's job.
func (r *SQLiteRepository) RecurringExpenses(ctx context.Context, scopeID int64) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, cadence, category, start_date, end_date
		FROM recurring_expenses
		WHERE scope_id = ?
		ORDER BY id`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringExpense
	for rows.Next() {
		var (
			e         core.RecurringExpense
			cadence   string
			startDate string
			endDate   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Amount.Cents, &cadence, &e.Category, &startDate, &endDate); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		e.Cadence = core.Cadence(cadence)
		if e.StartDate, err = parseStoredDate(startDate); err != nil {
			return nil, err
		}
		if e.EndDate, err = scanNullDate(endDate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransactionsInRange returns one-time transactions dated within the range.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, category, tx_date, note, waste_record_id
		FROM transactions
		WHERE scope_id = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date, id`, scopeID, start.Key(), end.Key())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			txDate  string
			wasteID sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &t.Category, &txDate, &t.Note, &wasteID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = parseStoredDate(txDate); err != nil {
			return nil, err
		}
		if wasteID.Valid {
			id := wasteID.Int64
			t.WasteRecordID = &id
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// WasteInRange returns waste records dated within the range.
func (r *SQLiteRepository) WasteInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.WasteRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cost_cents, waste_date, reason
		FROM waste_records
		WHERE scope_id = ? AND waste_date >= ? AND waste_date <= ?
		ORDER BY waste_date, id`, scopeID, start.Key(), end.Key())
	if err != nil {
		return nil, fmt.Errorf("query waste records: %w", err)
	}
	defer rows.Close()

	var out []core.WasteRecord
	for rows.Next() {
		var (
			w         core.WasteRecord
			wasteDate string
		)
		if err := rows.Scan(&w.ID, &w.Cost.Cents, &wasteDate, &w.Reason); err != nil {
			return nil, fmt.Errorf("scan waste record: %w", err)
		}
		if w.Date, err = parseStoredDate(wasteDate); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PayrollInRange returns paid payroll records whose paid date (falling back
// to the period date) lies within the range.
func (r *SQLiteRepository) PayrollInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PayrollRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, total_paid_cents, status, paid_date, period_date
		FROM payroll_records
		WHERE scope_id = ? AND status = ?
		  AND COALESCE(paid_date, period_date) >= ?
		  AND COALESCE(paid_date, period_date) <= ?
		ORDER BY id`, scopeID, string(core.PayrollPaid), start.Key(), end.Key())
	if err != nil {
		return nil, fmt.Errorf("query payroll records: %w", err)
	}
	defer rows.Close()

	var out []core.PayrollRecord
	for rows.Next() {
		var (
			p          core.PayrollRecord
			status     string
			paidDate   sql.NullString
			periodDate sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.TotalPaid.Cents, &status, &paidDate, &periodDate); err != nil {
			return nil, fmt.Errorf("scan payroll record: %w", err)
		}
		p.Status = core.PayrollStatus(status)
		if p.PaidDate, err = scanNullDate(paidDate); err != nil {
			return nil, err
		}
		if p.PeriodDate, err = scanNullDate(periodDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SalesInRange returns completed sales with their line items for timestamps
// within the range.
func (r *SQLiteRepository) SalesInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Sale, error) {
	// sold_at is stored RFC3339, so the date-prefix comparison is lexical
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sold_at, total_cents, status
		FROM sales
		WHERE scope_id = ? AND status = ? AND sold_at >= ? AND sold_at < ?
		ORDER BY sold_at, id`, scopeID, string(core.SaleCompleted), start.Key(), end.Next().Key())
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var (
		out   []core.Sale
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			s      core.Sale
			soldAt string
			status string
		)
		if err := rows.Scan(&s.ID, &soldAt, &s.Total.Cents, &status); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		s.Status = core.SaleStatus(status)
		if s.Timestamp, err = time.Parse(time.RFC3339, soldAt); err != nil {
			return nil, fmt.Errorf("parse sale timestamp %q: %w", soldAt, err)
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT li.sale_id, li.name, li.cost_cents, li.quantity
		FROM sale_line_items li
		JOIN sales s ON s.id = li.sale_id
		WHERE s.scope_id = ? AND s.status = ? AND s.sold_at >= ? AND s.sold_at < ?
		ORDER BY li.sale_id, li.id`, scopeID, string(core.SaleCompleted), start.Key(), end.Next().Key())
	if err != nil {
		return nil, fmt.Errorf("query sale line items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			saleID int64
			item   core.SaleLineItem
		)
		if err := itemRows.Scan(&saleID, &item.Name, &item.Cost.Cents, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale line item: %w", err)
		}
		if i, ok := index[saleID]; ok {
			out[i].Items = append(out[i].Items, item)
		}
	}
	return out, itemRows.Err()
}

// PrepSessionsInRange returns prep sessions dated within the range, usages
// priced at each ingredient's current cost per unit.
func (r *SQLiteRepository) PrepSessionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PrepSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, prep_date
		FROM prep_sessions
		WHERE scope_id = ? AND prep_date >= ? AND prep_date <= ?
		ORDER BY prep_date, id`, scopeID, start.Key(), end.Key())
	if err != nil {
		return nil, fmt.Errorf("query prep sessions: %w", err)
	}
	defer rows.Close()

	var (
		out   []core.PrepSession
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			p        core.PrepSession
			prepDate string
		)
		if err := rows.Scan(&p.ID, &prepDate); err != nil {
			return nil, fmt.Errorf("scan prep session: %w", err)
		}
		if p.PrepDate, err = parseStoredDate(prepDate); err != nil {
			return nil, err
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	usageRows, err := r.db.QueryContext(ctx, `
		SELECT u.session_id, i.name, u.quantity_used, i.cost_per_unit_cents
		FROM prep_ingredient_usages u
		JOIN prep_sessions p ON p.id = u.session_id
		JOIN ingredients i ON i.id = u.ingredient_id
		WHERE p.scope_id = ? AND p.prep_date >= ? AND p.prep_date <= ?
		ORDER BY u.session_id, u.id`, scopeID, start.Key(), end.Key())
	if err != nil {
		return nil, fmt.Errorf("query prep ingredient usages: %w", err)
	}
	defer usageRows.Close()

	for usageRows.Next() {
		var (
			sessionID int64
			usage     core.IngredientUsage
		)
		if err := usageRows.Scan(&sessionID, &usage.Ingredient, &usage.QuantityUsed, &usage.CostPerUnit.Cents); err != nil {
			return nil, fmt.Errorf("scan prep ingredient usage: %w", err)
		}
		if i, ok := index[sessionID]; ok {
			out[i].Usages = append(out[i].Usages, usage)
		}
	}
	return out, usageRows.Err()
}

// CreateRecurringExpense inserts a recurring expense and returns its id.
func (r *SQLiteRepository) CreateRecurringExpense(ctx context.Context, scopeID int64, e core.RecurringExpense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_expenses (scope_id, amount_cents, cadence, category, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scopeID, e.Amount.Cents, string(e.Cadence), e.Category, e.StartDate.Key(), dateParam(e.EndDate))
	if err != nil {
		return 0, fmt.Errorf("create recurring expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring expense id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring expense saved",
		"id", id,
		"scope_id", scopeID,
		"cadence", string(e.Cadence),
		"amount_cents", e.Amount.Cents)
	return id, nil
}

// CreateTransaction inserts a one-time transaction and returns its id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, scopeID int64, t core.Transaction) (int64, error) {
	var wasteID any
	if t.WasteRecordID != nil {
		wasteID = *t.WasteRecordID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (scope_id, amount_cents, category, tx_date, note, waste_record_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scopeID, t.Amount.Cents, t.Category, t.Date.Key(), t.Note, wasteID)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"scope_id", scopeID,
		"category", t.Category,
		"waste_derived", t.WasteDerived())
	return id, nil
}

// CreateWasteRecord inserts a waste record and returns its id.
func (r *SQLiteRepository) CreateWasteRecord(ctx context.Context, scopeID int64, w core.WasteRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO waste_records (scope_id, cost_cents, waste_date, reason)
		VALUES (?, ?, ?, ?)`,
		scopeID, w.Cost.Cents, w.Date.Key(), w.Reason)
	if err != nil {
		return 0, fmt.Errorf("create waste record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("waste record id: %w", err)
	}

	slog.InfoContext(ctx, "Waste record saved", "id", id, "scope_id", scopeID, "cost_cents", w.Cost.Cents)
	return id, nil
}

// CreateWasteWithMirror inserts a waste record and its mirroring transaction
// in one SQL transaction, so a failed mirror never leaves an unpaired waste
// row behind. Returns the waste record id.
func (r *SQLiteRepository) CreateWasteWithMirror(ctx context.Context, scopeID int64, w core.WasteRecord, mirrorCategory string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin waste transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO waste_records (scope_id, cost_cents, waste_date, reason)
		VALUES (?, ?, ?, ?)`,
		scopeID, w.Cost.Cents, w.Date.Key(), w.Reason)
	if err != nil {
		return 0, fmt.Errorf("create waste record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("waste record id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (scope_id, amount_cents, category, tx_date, note, waste_record_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scopeID, w.Cost.Cents, mirrorCategory, w.Date.Key(), w.Reason, id); err != nil {
		return 0, fmt.Errorf("create waste mirror transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit waste record: %w", err)
	}

	slog.InfoContext(ctx, "Waste record saved with mirror",
		"id", id,
		"scope_id", scopeID,
		"cost_cents", w.Cost.Cents)
	return id, nil
}

// CreatePayrollRecord inserts a payroll record and returns its id.
func (r *SQLiteRepository) CreatePayrollRecord(ctx context.Context, scopeID int64, p core.PayrollRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payroll_records (scope_id, total_paid_cents, status, paid_date, period_date)
		VALUES (?, ?, ?, ?, ?)`,
		scopeID, p.TotalPaid.Cents, string(p.Status), dateParam(p.PaidDate), dateParam(p.PeriodDate))
	if err != nil {
		return 0, fmt.Errorf("create payroll record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payroll record id: %w", err)
	}

	slog.InfoContext(ctx, "Payroll record saved", "id", id, "scope_id", scopeID, "status", string(p.Status))
	return id, nil
}

// CreateSale inserts a sale and its line items in one transaction.
func (r *SQLiteRepository) CreateSale(ctx context.Context, scopeID int64, s core.Sale) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sale transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales (scope_id, sold_at, total_cents, status)
		VALUES (?, ?, ?, ?)`,
		scopeID, s.Timestamp.UTC().Format(time.RFC3339), s.Total.Cents, string(s.Status))
	if err != nil {
		return 0, fmt.Errorf("create sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sale id: %w", err)
	}

	for _, item := range s.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_line_items (sale_id, name, cost_cents, quantity)
			VALUES (?, ?, ?, ?)`,
			id, item.Name, item.Cost.Cents, item.Quantity); err != nil {
			return 0, fmt.Errorf("create sale line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sale: %w", err)
	}

	slog.InfoContext(ctx, "Sale saved",
		"id", id,
		"scope_id", scopeID,
		"total_cents", s.Total.Cents,
		"items", len(s.Items))
	return id, nil
}

// CreateIngredient inserts an ingredient with its current unit cost.
func (r *SQLiteRepository) CreateIngredient(ctx context.Context, scopeID int64, name string, costPerUnit core.Money) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ingredients (scope_id, name, cost_per_unit_cents)
		VALUES (?, ?, ?)`, scopeID, name, costPerUnit.Cents)
	if err != nil {
		return 0, fmt.Errorf("create ingredient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ingredient id: %w", err)
	}
	return id, nil
}

// PrepUsageInput links an ingredient row to a quantity consumed.
type PrepUsageInput struct {
	IngredientID int64
	QuantityUsed float64
}

// CreatePrepSession inserts a prep session and its usages in one transaction.
func (r *SQLiteRepository) CreatePrepSession(ctx context.Context, scopeID int64, prepDate core.Date, usages []PrepUsageInput) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prep transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO prep_sessions (scope_id, prep_date)
		VALUES (?, ?)`, scopeID, prepDate.Key())
	if err != nil {
		return 0, fmt.Errorf("create prep session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("prep session id: %w", err)
	}

	for _, u := range usages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prep_ingredient_usages (session_id, ingredient_id, quantity_used)
			VALUES (?, ?, ?)`, id, u.IngredientID, u.QuantityUsed); err != nil {
			return 0, fmt.Errorf("create prep ingredient usage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prep session: %w", err)
	}

	slog.InfoContext(ctx, "Prep session saved", "id", id, "scope_id", scopeID, "usages", len(usages))
	return id, nil
}
