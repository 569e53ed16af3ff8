// Package reports implements the financial period aggregation engine: it
// turns point-in-time records (sales, waste, payroll, one-time transactions)
// and interval-based recurring expenses into calendar-aligned read models
// over an arbitrary date range.
//
// This file implements the Strategy Pattern for recurring expense proration.
// Each cadence (daily, weekly, monthly, annual) has its own strategy that
// encapsulates how an amount scales over a clipped interval.
package reports

import (
	"log/slog"

	"resto/internal/core"
)

// AttributionStrategy computes the amount attributable to a clipped interval
// for one cadence. dayCount is the inclusive calendar-day count of the
// interval; monthCount is its calendar-month index span.
type AttributionStrategy interface {
	Attribute(amount float64, dayCount, monthCount int) float64
}

// DailyAttribution charges the amount once per calendar day.
type DailyAttribution struct{}

func (DailyAttribution) Attribute(amount float64, dayCount, _ int) float64 {
	return amount * float64(dayCount)
}

// WeeklyAttribution charges the amount proportionally to elapsed weeks.
type WeeklyAttribution struct{}

func (WeeklyAttribution) Attribute(amount float64, dayCount, _ int) float64 {
	return amount * float64(dayCount) / 7
}

// MonthlyAttribution charges the amount once per spanned calendar month.
// The span is a calendar-month index difference, not proportional to elapsed
// days: an interval covering a 28-day February counts the same as one
// covering a 31-day month. That quirk is part of the numeric contract.
type MonthlyAttribution struct{}

func (MonthlyAttribution) Attribute(amount float64, _, monthCount int) float64 {
	return amount * float64(monthCount)
}

// AnnualAttribution charges one twelfth of the amount per spanned month.
type AnnualAttribution struct{}

func (AnnualAttribution) Attribute(amount float64, _, monthCount int) float64 {
	return amount * float64(monthCount) / 12
}

// attributionStrategies maps cadences to their corresponding strategies.
var attributionStrategies = map[core.Cadence]AttributionStrategy{
	core.Daily:   DailyAttribution{},
	core.Weekly:  WeeklyAttribution{},
	core.Monthly: MonthlyAttribution{},
	core.Annual:  AnnualAttribution{},
}

// AttributedAmount computes how much of a recurring expense falls within
// [rangeStart, rangeEnd], both inclusive.
//
// The expense's effective window [StartDate, EndDate] (EndDate defaulting to
// rangeEnd when open-ended) is clipped against the query range; an empty
// clipped interval attributes nothing. A record with an unknown cadence also
// attributes nothing rather than failing the whole aggregation.
func AttributedAmount(e core.RecurringExpense, rangeStart, rangeEnd core.Date) float64 {
	effectiveEnd := rangeEnd
	if !e.EndDate.IsEmpty() {
		effectiveEnd = e.EndDate
	}

	start := maxDate(e.StartDate, rangeStart)
	end := minDate(effectiveEnd, rangeEnd)
	if end.Before(start.Time) {
		return 0
	}

	strategy, ok := attributionStrategies[e.Cadence]
	if !ok {
		slog.Warn("Unknown cadence, expense attributes nothing",
			"expense_id", e.ID,
			"cadence", string(e.Cadence))
		return 0
	}

	return strategy.Attribute(e.Amount.Amount(), inclusiveDays(start, end), monthSpan(start, end))
}

// inclusiveDays counts calendar days between two dates, both ends included.
// Dates are UTC midnights, so the division is exact.
func inclusiveDays(start, end core.Date) int {
	return int(end.Sub(start.Time).Hours()/24) + 1
}

// monthSpan is the calendar-month index difference, both ends included.
func monthSpan(start, end core.Date) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

func maxDate(a, b core.Date) core.Date {
	if a.After(b.Time) {
		return a
	}
	return b
}

func minDate(a, b core.Date) core.Date {
	if a.Before(b.Time) {
		return a
	}
	return b
}
