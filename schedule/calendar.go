package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Day-granularity time abstraction (the calendar works in whole days)
// =============================================================================

// Date is a day-granularity point in time, always normalized to UTC midnight.
// Construct via NewDate/ParseDate so values stay comparable.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// Comparison
func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsWorkday() bool { return !d.IsWeekend() }

func (d Date) String() string { return d.Time.Format(dateLayout) }

// JSON round-trips as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an inclusive [Start, End] span of days.
type DateRange struct {
	Start Date
	End   Date
}

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.BeforeOrEqual(r.End)
}

// Days returns every date in the range, in order.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; d.BeforeOrEqual(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// WORKDAY ARITHMETIC
// =============================================================================

// NextWorkday returns the first Mon-Fri date strictly after d.
func NextWorkday(d Date) Date {
	next := d.AddDays(1)
	for next.IsWeekend() {
		next = next.AddDays(1)
	}
	return next
}

// PreviousWorkday returns the last Mon-Fri date strictly before d.
func PreviousWorkday(d Date) Date {
	prev := d.AddDays(-1)
	for prev.IsWeekend() {
		prev = prev.AddDays(-1)
	}
	return prev
}

// WorkdaysIn expands a range to the dates matching the given workdays.
// An empty workday set falls back to DefaultWorkdays (Mon-Fri).
func WorkdaysIn(r DateRange, workdays []time.Weekday) []Date {
	if len(workdays) == 0 {
		workdays = DefaultWorkdays
	}
	match := make(map[time.Weekday]bool, len(workdays))
	for _, wd := range workdays {
		match[wd] = true
	}

	var days []Date
	for d := r.Start; d.BeforeOrEqual(r.End); d = d.AddDays(1) {
		if match[d.Weekday()] {
			days = append(days, d)
		}
	}
	return days
}

// =============================================================================
// DAY ACCOUNTING
// =============================================================================

// DaysCharged computes the decimal day total a leave span costs: one unit
// per workday in range (half for AM/PM blocks), excluding blocking holidays.
// The calendar may be nil when holidays should not be considered.
func DaysCharged(r DateRange, block TimeBlock, workdays []time.Weekday, calendar HolidayCalendar) decimal.Decimal {
	total := decimal.Zero
	for _, d := range WorkdaysIn(r, workdays) {
		if calendar != nil {
			if h := calendar.Lookup(d); h != nil && h.BlockAssignments {
				continue
			}
		}
		total = total.Add(block.DayFraction())
	}
	return total
}
