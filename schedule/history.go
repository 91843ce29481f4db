/*
history.go - Change history ledger for undo/redo of bulk mutations

PURPOSE:
  Every accepted bulk mutation is recorded as one ChangeRecord capturing
  enough state to invert it: full row snapshots of anything deleted, and
  the IDs of anything created.

STATE MACHINE:
  applied -> undone -> redone -> undone -> ...

  Undo and redo alternate. Redo of a fresh apply is rejected with a typed
  TransitionError - redo is only meaningful as the inverse of a prior undo.

UNDO:
  Delete the created rows, re-insert the deleted snapshots, mark undone.

REDO:
  Delete the rows undo restored, replay the original created rows with
  fresh IDs (the old IDs may have been reused), record the new IDs,
  mark redone.

PARTIAL FAILURE:
  Each step is an independent write. Failures are logged and counted;
  the result reports what actually happened so callers can reconcile.

SEE ALSO:
  - conflict.go: Records a ChangeRecord on every committed batch
  - store.go: HistoryStore persistence contract
*/
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// CHANGE STATE MACHINE
// =============================================================================

type ChangeState string

const (
	StateApplied ChangeState = "applied"
	StateUndone  ChangeState = "undone"
	StateRedone  ChangeState = "redone"
)

// canTransition encodes the applied -> undone <-> redone cycle.
func (s ChangeState) canTransition(to ChangeState) bool {
	switch {
	case s == StateApplied && to == StateUndone:
		return true
	case s == StateUndone && to == StateRedone:
		return true
	case s == StateRedone && to == StateUndone:
		return true
	}
	return false
}

// =============================================================================
// CHANGE RECORD
// =============================================================================

// ChangeRecord is an append-style ledger entry for one bulk mutation.
// Snapshots are immutable; only State and CreatedIDs change over time
// (CreatedIDs are rewritten on redo because replayed rows get fresh IDs).
type ChangeRecord struct {
	ID         RecordID
	Actor      string
	Deleted    []Assignment   // full snapshots of rows the mutation removed
	Redo       []Assignment   // snapshots of rows the mutation created
	CreatedIDs []AssignmentID // live IDs of the created rows
	State      ChangeState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UndoResult and RedoResult report what each inversion actually did.
type UndoResult struct {
	Success       bool
	DeletedCount  int
	RestoredCount int
	Message       string
}

type RedoResult struct {
	Success      bool
	DeletedCount int
	CreatedCount int
	Message      string
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Assignments AssignmentStore
	History     HistoryStore
	Logger      *zap.Logger
}

func NewLedger(assignments AssignmentStore, history HistoryStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{Assignments: assignments, History: history, Logger: logger}
}

// RecordCreate records a pure bulk create (nothing deleted).
func (l *Ledger) RecordCreate(ctx context.Context, created []Assignment, actor string) (ChangeRecord, error) {
	return l.RecordMutation(ctx, nil, created, actor)
}

// RecordMutation records a bulk mutation with both deleted and created rows.
func (l *Ledger) RecordMutation(ctx context.Context, deleted, created []Assignment, actor string) (ChangeRecord, error) {
	now := time.Now().UTC()
	record := ChangeRecord{
		ID:        RecordID(uuid.NewString()),
		Actor:     actor,
		Deleted:   deleted,
		Redo:      created,
		State:     StateApplied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range created {
		record.CreatedIDs = append(record.CreatedIDs, a.ID)
	}
	if err := l.History.AppendRecord(ctx, record); err != nil {
		return ChangeRecord{}, fmt.Errorf("append change record: %w", err)
	}
	return record, nil
}

// Undo inverts a recorded mutation: remove what it created, restore what
// it deleted.
func (l *Ledger) Undo(ctx context.Context, id RecordID) (UndoResult, error) {
	record, err := l.History.GetRecord(ctx, id)
	if err != nil {
		return UndoResult{}, err
	}
	if !record.State.canTransition(StateUndone) {
		return UndoResult{}, &TransitionError{RecordID: id, From: record.State, To: StateUndone}
	}

	deleted, err := l.Assignments.DeleteAssignments(ctx, record.CreatedIDs)
	if err != nil {
		return UndoResult{}, fmt.Errorf("undo: delete created rows: %w", err)
	}

	restored := 0
	for _, snapshot := range record.Deleted {
		if err := l.restore(ctx, snapshot); err != nil {
			l.Logger.Warn("undo: failed to restore snapshot",
				zap.String("record_id", string(id)),
				zap.String("assignment_id", string(snapshot.ID)),
				zap.Error(err))
			continue
		}
		restored++
	}

	record.State = StateUndone
	record.UpdatedAt = time.Now().UTC()
	if err := l.History.UpdateRecord(ctx, record); err != nil {
		return UndoResult{}, fmt.Errorf("undo: update record state: %w", err)
	}

	return UndoResult{
		Success:       true,
		DeletedCount:  deleted,
		RestoredCount: restored,
		Message:       fmt.Sprintf("removed %d assignments, restored %d", deleted, restored),
	}, nil
}

// Redo re-applies a previously undone mutation. The original created rows
// are replayed with fresh IDs and the record tracks the new IDs.
func (l *Ledger) Redo(ctx context.Context, id RecordID) (RedoResult, error) {
	record, err := l.History.GetRecord(ctx, id)
	if err != nil {
		return RedoResult{}, err
	}
	if !record.State.canTransition(StateRedone) {
		return RedoResult{}, &TransitionError{RecordID: id, From: record.State, To: StateRedone}
	}

	// Remove the rows undo restored.
	restoredIDs := make([]AssignmentID, len(record.Deleted))
	for i, a := range record.Deleted {
		restoredIDs[i] = a.ID
	}
	deleted, err := l.Assignments.DeleteAssignments(ctx, restoredIDs)
	if err != nil {
		return RedoResult{}, fmt.Errorf("redo: delete restored rows: %w", err)
	}

	created := 0
	newIDs := make([]AssignmentID, 0, len(record.Redo))
	for _, snapshot := range record.Redo {
		replay := snapshot
		replay.ID = AssignmentID(uuid.NewString())
		replay.CreatedAt = time.Now().UTC()
		if err := l.restore(ctx, replay); err != nil {
			l.Logger.Warn("redo: failed to replay row",
				zap.String("record_id", string(id)),
				zap.Error(err))
			continue
		}
		newIDs = append(newIDs, replay.ID)
		created++
	}

	record.CreatedIDs = newIDs
	record.State = StateRedone
	record.UpdatedAt = time.Now().UTC()
	if err := l.History.UpdateRecord(ctx, record); err != nil {
		return RedoResult{}, fmt.Errorf("redo: update record state: %w", err)
	}

	return RedoResult{
		Success:      true,
		DeletedCount: deleted,
		CreatedCount: created,
		Message:      fmt.Sprintf("removed %d assignments, recreated %d", deleted, created),
	}, nil
}

// restore inserts a snapshot, treating an already-present row as restored.
func (l *Ledger) restore(ctx context.Context, a Assignment) error {
	err := l.Assignments.CreateAssignment(ctx, a)
	if errors.Is(err, ErrDuplicateAssignment) {
		return nil
	}
	return err
}
