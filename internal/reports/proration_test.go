package reports

import (
	"math"
	"testing"

	"resto/internal/core"
)

func money(units int64) core.Money {
	return core.Money{Cents: units * 100}
}

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAttributedAmount_OutsideRange(t *testing.T) {
	tests := []struct {
		name    string
		expense core.RecurringExpense
	}{
		{
			name: "ended before range",
			expense: core.RecurringExpense{
				Amount:    money(100),
				Cadence:   core.Daily,
				StartDate: core.NewDate(2024, 1, 1),
				EndDate:   core.NewDate(2024, 12, 31),
			},
		},
		{
			name: "starts after range",
			expense: core.RecurringExpense{
				Amount:    money(100),
				Cadence:   core.Monthly,
				StartDate: core.NewDate(2025, 6, 1),
			},
		},
	}

	start, end := core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttributedAmount(tt.expense, start, end); got != 0 {
				t.Fatalf("expected 0, got %v", got)
			}
		})
	}
}

func TestAttributedAmount_Daily(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(10),
		Cadence:   core.Daily,
		StartDate: core.NewDate(2024, 1, 1),
	}
	// full 31-day cover
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)), 310)
	// single day
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 5), core.NewDate(2025, 1, 5)), 10)
}

func TestAttributedAmount_DailyClippedStart(t *testing.T) {
	// starts mid-range: only the covered tail is charged
	e := core.RecurringExpense{
		Amount:    money(10),
		Cadence:   core.Daily,
		StartDate: core.NewDate(2025, 1, 10),
	}
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)), 220)
}

func TestAttributedAmount_Weekly(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(70),
		Cadence:   core.Weekly,
		StartDate: core.NewDate(2024, 1, 1),
	}
	// 14 inclusive days = exactly two weeks
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 14)), 140)
	// 10 inclusive days = 10/7 weeks
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 10)), 100)
}

func TestAttributedAmount_MonthlyCalendarIndex(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(1000),
		Cadence:   core.Monthly,
		StartDate: core.NewDate(2024, 1, 1),
	}
	// the month span is a calendar index difference: a 28-day February
	// charges the same as a 31-day January
	approx(t, AttributedAmount(e, core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28)), 1000)
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)), 1000)
	// Jan 15 .. Feb 14 touches two month indices, so it charges twice
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 15), core.NewDate(2025, 2, 14)), 2000)
	// full quarter
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 3, 31)), 3000)
}

func TestAttributedAmount_Annual(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(1200),
		Cadence:   core.Annual,
		StartDate: core.NewDate(2020, 1, 1),
	}
	// twelve month indices = the full annual amount
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31)), 1200)
	// one month index = one twelfth
	approx(t, AttributedAmount(e, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31)), 100)
}

func TestAttributedAmount_OpenEndedClipsToRangeEnd(t *testing.T) {
	// open-ended expense queried for a future window: the effective end is
	// the range end, not unbounded
	e := core.RecurringExpense{
		Amount:    money(10),
		Cadence:   core.Daily,
		StartDate: core.NewDate(2025, 1, 1),
	}
	approx(t, AttributedAmount(e, core.NewDate(2030, 6, 1), core.NewDate(2030, 6, 30)), 300)
}

func TestAttributedAmount_ExpenseEndInsideRange(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(10),
		Cadence:   core.Daily,
		StartDate: core.NewDate(2024, 1, 1),
		EndDate:   core.NewDate(2025, 1, 10),
	}
	approx(t, AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)), 100)
}

func TestAttributedAmount_UnknownCadence(t *testing.T) {
	e := core.RecurringExpense{
		Amount:    money(100),
		Cadence:   "fortnightly",
		StartDate: core.NewDate(2024, 1, 1),
	}
	if got := AttributedAmount(e, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)); got != 0 {
		t.Fatalf("unknown cadence must attribute 0, got %v", got)
	}
}

func TestInclusiveDays(t *testing.T) {
	cases := []struct {
		start, end core.Date
		want       int
	}{
		{core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 1), 1},
		{core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), 31},
		{core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29), 29}, // leap February
		{core.NewDate(2024, 12, 30), core.NewDate(2025, 1, 2), 4},
	}
	for i, tc := range cases {
		if got := inclusiveDays(tc.start, tc.end); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}

func TestMonthSpan(t *testing.T) {
	cases := []struct {
		start, end core.Date
		want       int
	}{
		{core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31), 1},
		{core.NewDate(2025, 1, 31), core.NewDate(2025, 2, 1), 2},
		{core.NewDate(2024, 11, 15), core.NewDate(2025, 2, 15), 4}, // across year boundary
	}
	for i, tc := range cases {
		if got := monthSpan(tc.start, tc.end); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}
