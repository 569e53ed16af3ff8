package reports

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"resto/internal/core"
)

// Category labels the aggregator synthesizes during folds.
const (
	CategoryGeneral = "General" // recurring expenses without a category
	CategoryWaste   = "Waste"   // synthetic bucket for waste record costs
	CategoryOther   = "Other"   // relabeled from the stored OTHER value

	categoryOtherRaw = "OTHER"
)

var ErrInvalidRange = errors.New("invalid date range")

// Source supplies the six record collections for one scope. Implementations
// must already apply the status filters (paid payroll, completed sales) and
// the date-range filters; recurring expenses come back unfiltered because
// window clipping happens inside proration.
type Source interface {
	RecurringExpenses(ctx context.Context, scopeID int64) ([]core.RecurringExpense, error)
	TransactionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Transaction, error)
	WasteInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.WasteRecord, error)
	PayrollInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PayrollRecord, error)
	SalesInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.Sale, error)
	PrepSessionsInRange(ctx context.Context, scopeID int64, start, end core.Date) ([]core.PrepSession, error)
}

// Aggregator folds ledger snapshots into the three read models. It holds no
// mutable state, so concurrent requests need no locking.
type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// snapshot is everything one aggregation request reads. The fetches are
// independent, so they run concurrently; the fold over the snapshot is
// single-threaded and purely additive.
type snapshot struct {
	recurring    []core.RecurringExpense
	transactions []core.Transaction
	waste        []core.WasteRecord
	payroll      []core.PayrollRecord
	sales        []core.Sale
	prep         []core.PrepSession
}

func (a *Aggregator) gather(ctx context.Context, scopeID int64, start, end core.Date) (*snapshot, error) {
	var snap snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if snap.recurring, err = a.src.RecurringExpenses(ctx, scopeID); err != nil {
			return fmt.Errorf("fetch recurring expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.transactions, err = a.src.TransactionsInRange(ctx, scopeID, start, end); err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.waste, err = a.src.WasteInRange(ctx, scopeID, start, end); err != nil {
			return fmt.Errorf("fetch waste records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.payroll, err = a.src.PayrollInRange(ctx, scopeID, start, end); err != nil {
			return fmt.Errorf("fetch payroll records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.sales, err = a.src.SalesInRange(ctx, scopeID, start, end); err != nil {
			return fmt.Errorf("fetch sales: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.prep, err = a.src.PrepSessionsInRange(ctx, scopeID, start, end); err != nil {
			return fmt.Errorf("fetch prep sessions: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func checkRange(start, end core.Date) error {
	if start.IsEmpty() || end.IsEmpty() || end.Before(start.Time) {
		return ErrInvalidRange
	}
	return nil
}

// dayBucket accumulates one calendar day of the daily series.
type dayBucket struct {
	revenue   float64
	cogs      float64
	expenses  float64
	payroll   float64
	netProfit float64
	margin    float64
}

// DailySeries computes the per-day profit/margin series for a range.
//
// The range-wide recurring expense total and payroll total are spread evenly
// across every day rather than recomputed per day from cadence rules; that
// flat amortization matches the established reporting behavior.
func (a *Aggregator) DailySeries(ctx context.Context, scopeID int64, start, end core.Date) ([]DailyPoint, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	snap, err := a.gather(ctx, scopeID, start, end)
	if err != nil {
		return nil, err
	}

	numDays := inclusiveDays(start, end)

	var totalRecurring float64
	for _, e := range snap.recurring {
		totalRecurring += AttributedAmount(e, start, end)
	}
	dailyRecurringShare := totalRecurring / float64(numDays)

	var totalPayroll float64
	for _, p := range snap.payroll {
		totalPayroll += p.TotalPaid.Amount()
	}
	dailyPayrollShare := totalPayroll / float64(numDays)

	buckets := make(map[string]*dayBucket, numDays)
	days := make([]core.Date, 0, numDays)
	for d := start; !d.After(end.Time); d = d.Next() {
		buckets[d.Key()] = &dayBucket{expenses: dailyRecurringShare, payroll: dailyPayrollShare}
		days = append(days, d)
	}

	for _, s := range snap.sales {
		if b := buckets[core.DateOf(s.Timestamp).Key()]; b != nil {
			b.revenue += s.Total.Amount()
			b.cogs += s.COGS().Amount()
		}
	}
	for _, p := range snap.prep {
		if b := buckets[p.PrepDate.Key()]; b != nil {
			b.cogs += p.COGS()
		}
	}
	for _, t := range snap.transactions {
		if t.WasteDerived() {
			// the mirrored cost arrives through the waste pass below
			continue
		}
		if b := buckets[t.Date.Key()]; b != nil {
			b.expenses += t.Amount.Amount()
		}
	}
	for _, w := range snap.waste {
		if b := buckets[w.Date.Key()]; b != nil {
			b.expenses += w.Cost.Amount()
		}
	}

	series := make([]DailyPoint, 0, numDays)
	for _, d := range days {
		b := buckets[d.Key()]
		b.netProfit = b.revenue - b.cogs - b.expenses - b.payroll
		if b.revenue > 0 {
			b.margin = b.netProfit / b.revenue * 100
		}
		series = append(series, projectDailyPoint(d, b))
	}
	return series, nil
}

// CategoryBreakdown totals expenses per category over a range: prorated
// recurring expenses under their own label (or General), one-time
// transactions under their category (OTHER relabeled Other), and waste costs
// under the synthetic Waste key. Waste-derived transactions are skipped so a
// waste cost is counted exactly once.
func (a *Aggregator) CategoryBreakdown(ctx context.Context, scopeID int64, start, end core.Date) (Breakdown, error) {
	if err := checkRange(start, end); err != nil {
		return Breakdown{}, err
	}
	snap, err := a.gather(ctx, scopeID, start, end)
	if err != nil {
		return Breakdown{}, err
	}

	categories := make(map[string]float64)
	foldRecurringByCategory(categories, snap.recurring, start, end)

	for _, t := range snap.transactions {
		if t.WasteDerived() {
			continue
		}
		label := t.Category
		if label == categoryOtherRaw {
			label = CategoryOther
		}
		categories[label] += t.Amount.Amount()
	}

	var wasteTotal float64
	for _, w := range snap.waste {
		wasteTotal += w.Cost.Amount()
	}
	if wasteTotal > 0 {
		categories[CategoryWaste] += wasteTotal
	}

	return projectBreakdown(start, end, categories), nil
}

// Statement computes the six period totals plus the recurring expense
// breakdown. Unlike CategoryBreakdown, only recurring expenses are
// categorized here; one-time and waste costs are not part of this variant.
func (a *Aggregator) Statement(ctx context.Context, scopeID int64, start, end core.Date) (*Statement, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	snap, err := a.gather(ctx, scopeID, start, end)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		Start:             start.Key(),
		End:               end.Key(),
		ExpenseByCategory: make(map[string]float64),
	}

	for _, s := range snap.sales {
		st.TotalRevenue += s.Total.Amount()
		st.TotalCOGS += s.COGS().Amount()
	}
	st.GrossProfit = st.TotalRevenue - st.TotalCOGS

	for _, p := range snap.payroll {
		st.PayrollTotal += p.TotalPaid.Amount()
	}

	foldRecurringByCategory(st.ExpenseByCategory, snap.recurring, start, end)
	for _, amount := range st.ExpenseByCategory {
		st.TotalExpenses += amount
	}

	st.NetProfit = st.GrossProfit - st.TotalExpenses - st.PayrollTotal
	return st, nil
}

// foldRecurringByCategory adds each expense's attributed amount to its
// category label, defaulting to General. Expenses attributing zero (outside
// the range, unknown cadence) leave no key behind.
func foldRecurringByCategory(into map[string]float64, expenses []core.RecurringExpense, start, end core.Date) {
	for _, e := range expenses {
		amount := AttributedAmount(e, start, end)
		if amount == 0 {
			continue
		}
		label := e.Category
		if label == "" {
			label = CategoryGeneral
		}
		into[label] += amount
	}
}
