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

func newLedgerFixture() (*schedule.Ledger, *store.Memory) {
	mem := store.NewMemory()
	return schedule.NewLedger(mem, mem, nil), mem
}

func seedAssignments(t *testing.T, mem *store.Memory, ids ...schedule.AssignmentID) []schedule.Assignment {
	t.Helper()
	rows := make([]schedule.Assignment, len(ids))
	for i, id := range ids {
		rows[i] = schedule.Assignment{
			ID:         id,
			Date:       schedule.NewDate(2026, time.February, 2+i),
			Block:      schedule.BlockBoth,
			ProviderID: "p1",
			ServiceID:  "clinic",
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, mem.CreateAssignment(context.Background(), rows[i]))
	}
	return rows
}

func countAssignments(t *testing.T, mem *store.Memory) int {
	t.Helper()
	rows, err := mem.ListAssignments(context.Background(), schedule.AssignmentFilter{})
	require.NoError(t, err)
	return len(rows)
}

// =============================================================================
// UNDO
// =============================================================================

func TestUndo_RemovesCreatedRows(t *testing.T) {
	// GIVEN: A recorded bulk create of two rows
	ledger, mem := newLedgerFixture()
	ctx := context.Background()
	rows := seedAssignments(t, mem, "a1", "a2")

	record, err := ledger.RecordCreate(ctx, rows, "tester")
	require.NoError(t, err)

	// WHEN: Undoing
	result, err := ledger.Undo(ctx, record.ID)
	require.NoError(t, err)

	// THEN: Both rows are gone and the record is marked undone
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, 0, result.RestoredCount)
	assert.Equal(t, 0, countAssignments(t, mem))

	stored, err := mem.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StateUndone, stored.State)
}

func TestUndo_RestoresDeletedSnapshots(t *testing.T) {
	// GIVEN: A mutation that deleted one row and created another
	ledger, mem := newLedgerFixture()
	ctx := context.Background()

	old := seedAssignments(t, mem, "old")[0]
	_, err := mem.DeleteAssignments(ctx, []schedule.AssignmentID{"old"})
	require.NoError(t, err)
	created := schedule.Assignment{
		ID: "new", Date: old.Date, Block: schedule.BlockBoth,
		ProviderID: "p1", ServiceID: "surgery", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, mem.CreateAssignment(ctx, created))

	record, err := ledger.RecordMutation(ctx, []schedule.Assignment{old}, []schedule.Assignment{created}, "tester")
	require.NoError(t, err)

	// WHEN: Undoing
	result, err := ledger.Undo(ctx, record.ID)
	require.NoError(t, err)

	// THEN: The new row is gone and the old one is back
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 1, result.RestoredCount)

	restored, err := mem.GetAssignment(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, old.ServiceID, restored.ServiceID)

	_, err = mem.GetAssignment(ctx, "new")
	assert.ErrorIs(t, err, schedule.ErrAssignmentNotFound)
}

func TestUndo_Twice_Rejected(t *testing.T) {
	ledger, mem := newLedgerFixture()
	ctx := context.Background()
	rows := seedAssignments(t, mem, "a1")

	record, err := ledger.RecordCreate(ctx, rows, "")
	require.NoError(t, err)
	_, err = ledger.Undo(ctx, record.ID)
	require.NoError(t, err)

	_, err = ledger.Undo(ctx, record.ID)

	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)
	var terr *schedule.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, schedule.StateUndone, terr.From)
}

// =============================================================================
// REDO
// =============================================================================

func TestRedo_BeforeUndo_Rejected(t *testing.T) {
	// GIVEN: A freshly applied record
	ledger, mem := newLedgerFixture()
	ctx := context.Background()
	rows := seedAssignments(t, mem, "a1")

	record, err := ledger.RecordCreate(ctx, rows, "")
	require.NoError(t, err)

	// WHEN: Redoing without a prior undo
	_, err = ledger.Redo(ctx, record.ID)

	// THEN: Rejected with a typed transition error
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)
	var terr *schedule.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, schedule.StateApplied, terr.From)
	assert.Equal(t, schedule.StateRedone, terr.To)
}

func TestRedo_RecreatesRowsWithFreshIDs(t *testing.T) {
	// GIVEN: An undone bulk create
	ledger, mem := newLedgerFixture()
	ctx := context.Background()
	rows := seedAssignments(t, mem, "a1", "a2")

	record, err := ledger.RecordCreate(ctx, rows, "")
	require.NoError(t, err)
	_, err = ledger.Undo(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, 0, countAssignments(t, mem))

	// WHEN: Redoing
	result, err := ledger.Redo(ctx, record.ID)
	require.NoError(t, err)

	// THEN: Equivalent rows exist again, under new IDs
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, 2, countAssignments(t, mem))

	stored, err := mem.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StateRedone, stored.State)
	require.Len(t, stored.CreatedIDs, 2)
	for _, id := range stored.CreatedIDs {
		assert.NotContains(t, []schedule.AssignmentID{"a1", "a2"}, id)
		_, err := mem.GetAssignment(ctx, id)
		assert.NoError(t, err)
	}
}

func TestUndoRedoUndo_Alternates(t *testing.T) {
	// GIVEN: A record cycled through undo and redo
	ledger, mem := newLedgerFixture()
	ctx := context.Background()
	rows := seedAssignments(t, mem, "a1")

	record, err := ledger.RecordCreate(ctx, rows, "")
	require.NoError(t, err)

	_, err = ledger.Undo(ctx, record.ID)
	require.NoError(t, err)
	_, err = ledger.Redo(ctx, record.ID)
	require.NoError(t, err)

	// WHEN: Undoing again
	result, err := ledger.Undo(ctx, record.ID)
	require.NoError(t, err)

	// THEN: The replayed rows are removed again
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 0, countAssignments(t, mem))
}

func TestUndo_UnknownRecord_NotFound(t *testing.T) {
	ledger, _ := newLedgerFixture()

	_, err := ledger.Undo(context.Background(), "missing")

	assert.ErrorIs(t, err, schedule.ErrRecordNotFound)
}
