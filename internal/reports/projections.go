package reports

import "resto/internal/core"

// DailyPoint is one entry of the daily profit series.
type DailyPoint struct {
	Date      string  `json:"date"`
	Revenue   float64 `json:"revenue"`
	Margin    float64 `json:"margin"` // percent of revenue
	NetProfit float64 `json:"netProfit"`
}

// Breakdown maps category labels to total expense amounts for a range.
type Breakdown struct {
	Start      string             `json:"start"`
	End        string             `json:"end"`
	Categories map[string]float64 `json:"categories"`
}

// Statement holds the six summary totals of a period plus the recurring
// expense breakdown, the numeric contract for the downstream renderer.
type Statement struct {
	Start             string             `json:"start"`
	End               string             `json:"end"`
	TotalRevenue      float64            `json:"totalRevenue"`
	TotalCOGS         float64            `json:"totalCOGS"`
	GrossProfit       float64            `json:"grossProfit"`
	TotalExpenses     float64            `json:"totalExpenses"`
	PayrollTotal      float64            `json:"payrollTotal"`
	NetProfit         float64            `json:"netProfit"`
	ExpenseByCategory map[string]float64 `json:"expenseByCategory"`
}

// projectDailyPoint shapes one day bucket into its caller-facing entry.
// Net profit and margin are already folded into the bucket; this only copies.
func projectDailyPoint(day core.Date, b *dayBucket) DailyPoint {
	return DailyPoint{
		Date:      day.Key(),
		Revenue:   b.revenue,
		Margin:    b.margin,
		NetProfit: b.netProfit,
	}
}

// projectBreakdown shapes a category fold into its caller-facing structure.
func projectBreakdown(start, end core.Date, categories map[string]float64) Breakdown {
	return Breakdown{
		Start:      start.Key(),
		End:        end.Key(),
		Categories: categories,
	}
}
