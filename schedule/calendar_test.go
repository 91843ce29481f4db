package schedule_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/schedule-engine/schedule"
)

// =============================================================================
// DATE PARSING AND NORMALIZATION
// =============================================================================

func TestParseDate_NormalizesToUTCMidnight(t *testing.T) {
	d, err := schedule.ParseDate("2026-01-05")
	require.NoError(t, err)

	assert.Equal(t, 2026, d.Time.Year())
	assert.Equal(t, time.January, d.Time.Month())
	assert.Equal(t, 5, d.Time.Day())
	assert.Equal(t, 0, d.Time.Hour())
	assert.Equal(t, time.UTC, d.Time.Location())
	assert.Equal(t, "2026-01-05", d.String())
}

func TestParseDate_RejectsBadFormat(t *testing.T) {
	_, err := schedule.ParseDate("01/05/2026")
	assert.Error(t, err)

	_, err = schedule.ParseDate("2026-1-5")
	assert.Error(t, err)
}

func TestDateOf_DropsTimeOfDay(t *testing.T) {
	// GIVEN: A timestamp in the middle of the day
	ts := time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)

	// WHEN: Converted to a Date
	d := schedule.DateOf(ts)

	// THEN: Equal to the midnight-constructed date
	assert.True(t, d.Equal(schedule.NewDate(2026, time.March, 14)))
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := schedule.NewDate(2026, time.July, 4)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-07-04"`, string(b))

	var back schedule.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back))
}

// =============================================================================
// WORKDAY ARITHMETIC
// =============================================================================

func TestNextWorkday_SkipsWeekend(t *testing.T) {
	// GIVEN: A Friday
	friday := schedule.NewDate(2026, time.January, 9)

	// WHEN: Advancing to the next workday
	next := schedule.NextWorkday(friday)

	// THEN: Saturday and Sunday are skipped
	assert.Equal(t, "2026-01-12", next.String())
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestPreviousWorkday_SkipsWeekend(t *testing.T) {
	monday := schedule.NewDate(2026, time.January, 12)

	prev := schedule.PreviousWorkday(monday)

	assert.Equal(t, "2026-01-09", prev.String())
	assert.Equal(t, time.Friday, prev.Weekday())
}

func TestWorkdaysIn_DefaultMonFri(t *testing.T) {
	// GIVEN: A full calendar week including the weekend
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5), // Monday
		End:   schedule.NewDate(2026, time.January, 11), // Sunday
	}

	// WHEN: Expanded with no configured workdays
	days := schedule.WorkdaysIn(span, nil)

	// THEN: Only Mon-Fri remain
	require.Len(t, days, 5)
	assert.Equal(t, "2026-01-05", days[0].String())
	assert.Equal(t, "2026-01-09", days[4].String())
}

func TestWorkdaysIn_CustomWorkdays(t *testing.T) {
	// GIVEN: A provider who only works Tuesday and Thursday
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 11),
	}

	days := schedule.WorkdaysIn(span, []time.Weekday{time.Tuesday, time.Thursday})

	require.Len(t, days, 2)
	assert.Equal(t, "2026-01-06", days[0].String())
	assert.Equal(t, "2026-01-08", days[1].String())
}

func TestDateRange_Contains_Inclusive(t *testing.T) {
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 9),
	}

	assert.True(t, span.Contains(schedule.NewDate(2026, time.January, 5)))
	assert.True(t, span.Contains(schedule.NewDate(2026, time.January, 9)))
	assert.False(t, span.Contains(schedule.NewDate(2026, time.January, 10)))
	assert.False(t, span.Contains(schedule.NewDate(2026, time.January, 4)))
}

// =============================================================================
// DAY ACCOUNTING
// =============================================================================

func TestDaysCharged_FullWeekFullDays(t *testing.T) {
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 9),
	}

	total := schedule.DaysCharged(span, schedule.BlockBoth, nil, nil)

	assert.True(t, total.Equal(decimal.NewFromInt(5)), "got %s", total)
}

func TestDaysCharged_HalfDayBlock(t *testing.T) {
	// GIVEN: A Mon-Fri week taken as mornings only
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 9),
	}

	total := schedule.DaysCharged(span, schedule.BlockAM, nil, nil)

	// THEN: 5 x 0.5 = 2.5 days, exact
	assert.True(t, total.Equal(decimal.NewFromFloat(2.5)), "got %s", total)
}

func TestDaysCharged_SkipsBlockingHolidays(t *testing.T) {
	// GIVEN: Wednesday is a blocking holiday
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 9),
	}
	calendar := schedule.NewStaticCalendar([]schedule.Holiday{
		{ID: "h1", Date: schedule.NewDate(2026, time.January, 7), Name: "Founders Day", BlockAssignments: true},
	})

	total := schedule.DaysCharged(span, schedule.BlockBoth, nil, calendar)

	// THEN: The holiday is not charged
	assert.True(t, total.Equal(decimal.NewFromInt(4)), "got %s", total)
}

func TestDaysCharged_NonBlockingHolidayStillCharged(t *testing.T) {
	span := schedule.DateRange{
		Start: schedule.NewDate(2026, time.January, 5),
		End:   schedule.NewDate(2026, time.January, 9),
	}
	calendar := schedule.NewStaticCalendar([]schedule.Holiday{
		{ID: "h1", Date: schedule.NewDate(2026, time.January, 7), Name: "Observance", BlockAssignments: false},
	})

	total := schedule.DaysCharged(span, schedule.BlockBoth, nil, calendar)

	assert.True(t, total.Equal(decimal.NewFromInt(5)), "got %s", total)
}

// =============================================================================
// TIME BLOCK OVERLAP
// =============================================================================

func TestTimeBlock_Overlaps(t *testing.T) {
	cases := []struct {
		a, b schedule.TimeBlock
		want bool
	}{
		{schedule.BlockAM, schedule.BlockAM, true},
		{schedule.BlockPM, schedule.BlockPM, true},
		{schedule.BlockAM, schedule.BlockPM, false},
		{schedule.BlockPM, schedule.BlockAM, false},
		{schedule.BlockBoth, schedule.BlockAM, true},
		{schedule.BlockPM, schedule.BlockBoth, true},
		{schedule.BlockBoth, schedule.BlockBoth, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.a.Overlaps(c.b), "%s vs %s", c.a, c.b)
	}
}
