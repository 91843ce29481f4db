package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/schedule-engine/schedule"
	"github.com/meridian/schedule-engine/schedule/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newExpanderFixture(holidays []schedule.Holiday, inpatient ...string) (*schedule.Expander, *store.Memory) {
	mem := store.NewMemory()
	mem.AddService(schedule.Service{ID: "clinic", Name: "Clinic"})
	mem.AddService(schedule.Service{ID: "icu", Name: "ICU", Inpatient: true})

	expander := schedule.NewExpander(mem, mem, mem, schedule.NewStaticCalendar(holidays),
		schedule.NewInpatientServices(inpatient...), nil)
	return expander, mem
}

func mondayAMTemplate(mem *store.Memory) schedule.TemplateID {
	id := schedule.TemplateID("weekly")
	mem.AddTemplate(schedule.Template{ID: id, Name: "Weekly Clinic"}, []schedule.TemplateAssignment{
		{TemplateID: id, DayOfWeek: time.Monday, ProviderID: "p1", ServiceID: "clinic", Block: schedule.BlockAM},
	})
	return id
}

// =============================================================================
// EXPANSION
// =============================================================================

func TestApply_MondayAMOverTwoWeeks_CreatesTwo(t *testing.T) {
	// GIVEN: A template with one Monday AM row
	expander, mem := newExpanderFixture(nil)
	id := mondayAMTemplate(mem)
	ctx := context.Background()

	// WHEN: Applied over a two-week range
	result, err := expander.Apply(ctx, id,
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 18), false)
	require.NoError(t, err)

	// THEN: Exactly the two Mondays are materialized
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	rows, err := mem.ListAssignments(ctx, schedule.AssignmentFilter{ProviderID: "p1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-01-05", rows[0].Date.String())
	assert.Equal(t, "2026-01-12", rows[1].Date.String())
	assert.Equal(t, schedule.BlockAM, rows[0].Block)
}

func TestApply_Reapply_SkipsDuplicates(t *testing.T) {
	// GIVEN: The template was already applied once
	expander, mem := newExpanderFixture(nil)
	id := mondayAMTemplate(mem)
	ctx := context.Background()
	start := schedule.NewDate(2026, time.January, 5)
	end := schedule.NewDate(2026, time.January, 18)

	_, err := expander.Apply(ctx, id, start, end, false)
	require.NoError(t, err)

	// WHEN: Applying the same range again
	result, err := expander.Apply(ctx, id, start, end, false)
	require.NoError(t, err)

	// THEN: Existing slots surface as unique-constraint skips, not errors
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	rows, _ := mem.ListAssignments(ctx, schedule.AssignmentFilter{ProviderID: "p1"})
	assert.Len(t, rows, 2)
}

func TestApply_FillEmptyOnly_LeavesOccupiedSlotsAlone(t *testing.T) {
	// GIVEN: The first Monday already has an overlapping assignment on a
	// different service (so the unique constraint would not catch it)
	expander, mem := newExpanderFixture(nil)
	id := mondayAMTemplate(mem)
	ctx := context.Background()
	require.NoError(t, mem.CreateAssignment(ctx, schedule.Assignment{
		ID: "existing", Date: schedule.NewDate(2026, time.January, 5),
		Block: schedule.BlockBoth, ProviderID: "p1", ServiceID: "icu",
	}))

	// WHEN: Applying with fill-empty-only
	result, err := expander.Apply(ctx, id,
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 18), true)
	require.NoError(t, err)

	// THEN: The occupied Monday is skipped, the free one is filled
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestApply_WithoutFillEmptyOnly_DoubleBooksAcrossServices(t *testing.T) {
	// Overwrite mode only dedupes exact slots; a different service on the
	// same block is a deliberate double-book.
	expander, mem := newExpanderFixture(nil)
	id := mondayAMTemplate(mem)
	ctx := context.Background()
	require.NoError(t, mem.CreateAssignment(ctx, schedule.Assignment{
		ID: "existing", Date: schedule.NewDate(2026, time.January, 5),
		Block: schedule.BlockBoth, ProviderID: "p1", ServiceID: "icu",
	}))

	result, err := expander.Apply(ctx, id,
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 11), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
}

// =============================================================================
// HOLIDAY SUPPRESSION
// =============================================================================

func TestApply_BlockingHoliday_SuppressesRow(t *testing.T) {
	// GIVEN: The first Monday is a blocking holiday
	expander, mem := newExpanderFixture([]schedule.Holiday{
		{ID: "h1", Date: schedule.NewDate(2026, time.January, 5), Name: "New Year Observed", BlockAssignments: true},
	})
	id := mondayAMTemplate(mem)

	result, err := expander.Apply(context.Background(), id,
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 18), false)
	require.NoError(t, err)

	// THEN: Only the second Monday is created; the conflict is reported
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.HolidayConflicts, 1)
	assert.Equal(t, "2026-01-05", result.HolidayConflicts[0].Date.String())
	assert.Equal(t, "New Year Observed", result.HolidayConflicts[0].HolidayName)
}

func TestApply_InpatientRowExemptFromHoliday(t *testing.T) {
	// GIVEN: An ICU template row on a blocking holiday
	expander, mem := newExpanderFixture([]schedule.Holiday{
		{ID: "h1", Date: schedule.NewDate(2026, time.January, 5), Name: "New Year Observed", BlockAssignments: true},
	}, "ICU")
	id := schedule.TemplateID("icu-week")
	mem.AddTemplate(schedule.Template{ID: id, Name: "ICU Week"}, []schedule.TemplateAssignment{
		{TemplateID: id, DayOfWeek: time.Monday, ProviderID: "p1", ServiceID: "icu", Block: schedule.BlockBoth},
	})

	result, err := expander.Apply(context.Background(), id,
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 5), false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.HolidayConflicts)
}

// =============================================================================
// INPUT HANDLING
// =============================================================================

func TestApply_UnknownTemplate_NotFound(t *testing.T) {
	expander, _ := newExpanderFixture(nil)

	_, err := expander.Apply(context.Background(), "missing",
		schedule.NewDate(2026, time.January, 5),
		schedule.NewDate(2026, time.January, 9), false)

	assert.ErrorIs(t, err, schedule.ErrTemplateNotFound)
}

func TestApply_InvertedRange_Rejected(t *testing.T) {
	expander, mem := newExpanderFixture(nil)
	id := mondayAMTemplate(mem)

	_, err := expander.Apply(context.Background(), id,
		schedule.NewDate(2026, time.January, 9),
		schedule.NewDate(2026, time.January, 5), false)

	assert.ErrorIs(t, err, schedule.ErrInvalidDateRange)
}
