package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
	Annual  Cadence = "annual"
)

const (
	PayrollPaid    PayrollStatus = "paid"
	PayrollPending PayrollStatus = "pending"
)

const (
	SaleCompleted SaleStatus = "completed"
	SalePending   SaleStatus = "pending"
	SaleVoided    SaleStatus = "voided"
)

type (
	// Cadence is the repetition interval of a recurring expense.
	Cadence string

	PayrollStatus string
	SaleStatus    string

	// Date is a calendar date. The time-of-day part is always UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// RecurringExpense is an obligation active from StartDate until EndDate.
	// A zero EndDate means the obligation is still open-ended.
	RecurringExpense struct {
		ID        int64
		Amount    Money
		Cadence   Cadence
		Category  string // optional label, empty means uncategorized
		StartDate Date
		EndDate   Date
	}

	// Transaction is a one-time expense on a single day. A non-nil
	// WasteRecordID marks it as derived from that waste record, so
	// aggregation must not count it on top of the waste record itself.
	Transaction struct {
		ID            int64
		Amount        Money
		Category      string
		Date          Date
		Note          string
		WasteRecordID *int64
	}

	// WasteRecord tracks spoilage/loss independently of any mirroring
	// transaction.
	WasteRecord struct {
		ID     int64
		Cost   Money
		Date   Date
		Reason string
	}

	// PayrollRecord is a payroll disbursement. Range membership is decided
	// by PaidDate when set, otherwise by PeriodDate.
	PayrollRecord struct {
		ID         int64
		TotalPaid  Money
		Status     PayrollStatus
		PaidDate   Date
		PeriodDate Date
	}

	SaleLineItem struct {
		Name     string
		Cost     Money // unit cost of goods sold
		Quantity int64
	}

	Sale struct {
		ID        int64
		Timestamp time.Time
		Total     Money
		Status    SaleStatus
		Items     []SaleLineItem
	}

	// IngredientUsage records how much of an ingredient a prep session
	// consumed, priced at the ingredient's current cost per unit.
	IngredientUsage struct {
		Ingredient   string
		QuantityUsed float64
		CostPerUnit  Money
	}

	PrepSession struct {
		ID       int64
		PrepDate Date
		Usages   []IngredientUsage
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCadence  = errors.New("invalid cadence")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidDates    = errors.New("end date before start date")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyCategory   = errors.New("empty category")
)

// NewDate creates a Date at UTC midnight from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates any timestamp to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// Key returns the ISO calendar date string, the canonical bucket key.
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date{Time: d.AddDate(0, 0, 1)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the date is unset (for optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Cadence) Validate() error {
	switch c {
	case Daily, Weekly, Monthly, Annual:
		return nil
	}
	return ErrInvalidCadence
}

func (re RecurringExpense) Validate() error {
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if err := re.Cadence.Validate(); err != nil {
		return err
	}
	if err := re.StartDate.Validate(); err != nil {
		return err
	}
	if !re.EndDate.IsEmpty() && re.EndDate.Before(re.StartDate.Time) {
		return ErrInvalidDates
	}
	return nil
}

// WasteDerived reports whether the transaction mirrors a waste record.
func (t Transaction) WasteDerived() bool {
	return t.WasteRecordID != nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (w WasteRecord) Validate() error {
	if err := w.Cost.Validate(); err != nil {
		return err
	}
	return w.Date.Validate()
}

// EffectiveDate is the date used to decide range membership: the paid date
// when known, the covered period's date otherwise.
func (p PayrollRecord) EffectiveDate() Date {
	if !p.PaidDate.IsEmpty() {
		return p.PaidDate
	}
	return p.PeriodDate
}

func (p PayrollRecord) Validate() error {
	if err := p.TotalPaid.Validate(); err != nil {
		return err
	}
	switch p.Status {
	case PayrollPaid, PayrollPending:
	default:
		return ErrInvalidStatus
	}
	if p.EffectiveDate().IsEmpty() {
		return ErrInvalidDate
	}
	return nil
}

// COGS returns the cost of goods sold across the sale's line items.
func (s Sale) COGS() Money {
	var cents int64
	for _, it := range s.Items {
		cents += it.Cost.Cents * it.Quantity
	}
	return Money{Cents: cents}
}

func (s Sale) Validate() error {
	if err := s.Total.Validate(); err != nil {
		return err
	}
	switch s.Status {
	case SaleCompleted, SalePending, SaleVoided:
	default:
		return ErrInvalidStatus
	}
	if s.Timestamp.IsZero() {
		return ErrInvalidDate
	}
	for _, it := range s.Items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if it.Cost.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Cost is the usage's contribution to cost of goods sold.
func (u IngredientUsage) Cost() float64 {
	return u.QuantityUsed * u.CostPerUnit.Amount()
}

// COGS returns the session's total ingredient cost.
func (p PrepSession) COGS() float64 {
	var total float64
	for _, u := range p.Usages {
		total += u.Cost()
	}
	return total
}

func (p PrepSession) Validate() error {
	if err := p.PrepDate.Validate(); err != nil {
		return err
	}
	for _, u := range p.Usages {
		if u.QuantityUsed <= 0 {
			return ErrInvalidQuantity
		}
		if u.CostPerUnit.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}
