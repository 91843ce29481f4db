package store_test

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
// BATCH INSERT ATOMICITY
// =============================================================================

func TestCreateAssignments_SelfConflictingBatch_InsertsNothing(t *testing.T) {
	// GIVEN: Two batch rows occupying the same slot
	mem := store.NewMemory()
	ctx := context.Background()
	d := schedule.NewDate(2026, time.March, 2)
	batch := []schedule.Assignment{
		{ID: "b1", Date: d, Block: schedule.BlockBoth, ProviderID: "p1", ServiceID: "pto", IsPTO: true},
		{ID: "b2", Date: d, Block: schedule.BlockBoth, ProviderID: "p1", ServiceID: "pto", IsPTO: true},
	}

	// WHEN: Inserting the batch
	err := mem.CreateAssignments(ctx, batch)

	// THEN: All rows or none
	assert.ErrorIs(t, err, schedule.ErrDuplicateAssignment)
	rows, err := mem.ListAssignments(ctx, schedule.AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateAssignments_ConflictWithExistingRow_InsertsNothing(t *testing.T) {
	// GIVEN: An existing row the second batch row collides with
	mem := store.NewMemory()
	ctx := context.Background()
	d := schedule.NewDate(2026, time.March, 2)
	require.NoError(t, mem.CreateAssignment(ctx, schedule.Assignment{
		ID: "a1", Date: d, Block: schedule.BlockAM, ProviderID: "p1", ServiceID: "clinic",
	}))

	err := mem.CreateAssignments(ctx, []schedule.Assignment{
		{ID: "b1", Date: d, Block: schedule.BlockPM, ProviderID: "p1", ServiceID: "clinic"},
		{ID: "b2", Date: d, Block: schedule.BlockAM, ProviderID: "p1", ServiceID: "clinic"},
	})

	// THEN: The clean first row is not left behind
	assert.ErrorIs(t, err, schedule.ErrDuplicateAssignment)
	rows, lerr := mem.ListAssignments(ctx, schedule.AssignmentFilter{})
	require.NoError(t, lerr)
	require.Len(t, rows, 1)
	assert.Equal(t, schedule.AssignmentID("a1"), rows[0].ID)
}
