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

type detectorFixture struct {
	mem      *store.Memory
	detector *schedule.Detector
}

func newDetectorFixture(holidays []schedule.Holiday, inpatient ...string) *detectorFixture {
	mem := store.NewMemory()
	mem.AddService(schedule.Service{ID: "clinic", Name: "Clinic"})
	mem.AddService(schedule.Service{ID: "icu", Name: "ICU", Inpatient: true})
	mem.AddService(schedule.Service{ID: "pto", Name: "PTO"})

	calendar := schedule.NewStaticCalendar(holidays)
	ledger := schedule.NewLedger(mem, mem, nil)
	detector := schedule.NewDetector(mem, mem, schedule.NewRuleEvaluator(mem), calendar,
		schedule.NewInpatientServices(inpatient...), ledger, nil)
	return &detectorFixture{mem: mem, detector: detector}
}

func workCandidate(d schedule.Date, block schedule.TimeBlock) schedule.Candidate {
	return schedule.Candidate{
		Date: d, Block: block, ProviderID: "p1", ServiceID: "clinic",
	}
}

func ptoCandidate(d schedule.Date, block schedule.TimeBlock) schedule.Candidate {
	return schedule.Candidate{
		Date: d, Block: block, ProviderID: "p1", ServiceID: "pto", IsPTO: true,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCheck_EmptyBatch_Rejected(t *testing.T) {
	f := newDetectorFixture(nil)

	_, err := f.detector.Check(context.Background(), nil, schedule.CheckOptions{})

	assert.True(t, schedule.IsValidation(err))
}

func TestCheck_InvalidCandidate_RejectsWholeCall(t *testing.T) {
	// GIVEN: One valid and one invalid candidate
	f := newDetectorFixture(nil)
	batch := []schedule.Candidate{
		workCandidate(monday, schedule.BlockAM),
		{Date: monday, Block: "EVENING", ProviderID: "p1", ServiceID: "clinic"},
	}

	// WHEN: Checking the batch
	_, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})

	// THEN: Validation fails before any side effect
	assert.True(t, schedule.IsValidation(err))
	rows, _ := f.mem.ListAssignments(context.Background(), schedule.AssignmentFilter{})
	assert.Empty(t, rows)
}

// =============================================================================
// STAGE 1: HOLIDAYS
// =============================================================================

func TestCheck_BlockingHoliday_HardBlocks(t *testing.T) {
	f := newDetectorFixture([]schedule.Holiday{
		{ID: "h1", Date: monday, Name: "New Year Observed", BlockAssignments: true},
	})

	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)}, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.HardBlocks, 1)
	assert.Equal(t, schedule.ConflictHoliday, result.HardBlocks[0].Kind)
}

func TestCheck_InpatientServiceExemptFromHoliday(t *testing.T) {
	// GIVEN: A blocking holiday and an inpatient-exempt service
	f := newDetectorFixture([]schedule.Holiday{
		{ID: "h1", Date: monday, Name: "New Year Observed", BlockAssignments: true},
	}, "ICU")

	batch := []schedule.Candidate{{
		Date: monday, Block: schedule.BlockBoth, ProviderID: "p1", ServiceID: "icu",
	}}
	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})
	require.NoError(t, err)

	// THEN: The inpatient assignment commits despite the holiday
	assert.True(t, result.Committed)
	assert.Len(t, result.Accepted, 1)
}

func TestCheck_NonBlockingHolidayDoesNotBlock(t *testing.T) {
	f := newDetectorFixture([]schedule.Holiday{
		{ID: "h1", Date: monday, Name: "Observance", BlockAssignments: false},
	})

	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)}, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.True(t, result.Committed)
}

// =============================================================================
// STAGE 2: PTO / WORK EXCLUSIVITY
// =============================================================================

func TestCheck_WorkOverExistingPTO_HardBlocks(t *testing.T) {
	// GIVEN: The provider already has PTO on the slot
	f := newDetectorFixture(nil)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a1", Date: monday, Block: schedule.BlockBoth,
		ProviderID: "p1", ServiceID: "pto", IsPTO: true,
	}))

	// WHEN: Scheduling work on an overlapping block
	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)}, schedule.CheckOptions{})
	require.NoError(t, err)

	// THEN: Hard blocked, not overridable
	assert.False(t, result.Committed)
	require.Len(t, result.HardBlocks, 1)
	assert.Equal(t, schedule.ConflictPTOOverlap, result.HardBlocks[0].Kind)
}

func TestCheck_PTOOverExistingWork_HardBlocks(t *testing.T) {
	f := newDetectorFixture(nil)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a1", Date: monday, Block: schedule.BlockAM,
		ProviderID: "p1", ServiceID: "clinic",
	}))

	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{ptoCandidate(monday, schedule.BlockBoth)}, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.HardBlocks, 1)
	assert.Equal(t, schedule.ConflictPTOOverlap, result.HardBlocks[0].Kind)
}

func TestCheck_DisjointBlocks_NoConflict(t *testing.T) {
	// GIVEN: PTO in the morning
	f := newDetectorFixture(nil)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a1", Date: monday, Block: schedule.BlockAM,
		ProviderID: "p1", ServiceID: "pto", IsPTO: true,
	}))

	// WHEN: Scheduling work in the afternoon
	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockPM)}, schedule.CheckOptions{})
	require.NoError(t, err)

	// THEN: AM and PM do not overlap; the work commits
	assert.True(t, result.Committed)
}

func TestCheck_PTOOverExistingPTO_SkippedIdempotently(t *testing.T) {
	f := newDetectorFixture(nil)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a1", Date: monday, Block: schedule.BlockBoth,
		ProviderID: "p1", ServiceID: "pto", IsPTO: true,
	}))

	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{ptoCandidate(monday, schedule.BlockBoth)}, schedule.CheckOptions{})
	require.NoError(t, err)

	// The batch succeeds with nothing new inserted
	assert.True(t, result.Committed)
	assert.Empty(t, result.Accepted)
	assert.Len(t, result.Skipped, 1)
}

func TestCheck_DuplicatePTOCandidatesWithinBatch_Commit(t *testing.T) {
	// GIVEN: The same PTO slot proposed twice in one batch
	f := newDetectorFixture(nil)
	batch := []schedule.Candidate{
		ptoCandidate(monday, schedule.BlockBoth),
		ptoCandidate(monday, schedule.BlockBoth),
	}

	// WHEN: Checking the batch
	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})
	require.NoError(t, err)

	// THEN: The duplicate collapses into the first and the batch commits
	assert.True(t, result.Committed)
	assert.Empty(t, result.HardBlocks)
	assert.Len(t, result.Accepted, 1)
	assert.Len(t, result.Skipped, 1)

	rows, err := f.mem.ListAssignments(context.Background(), schedule.AssignmentFilter{PTOOnly: true})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCheck_DuplicateWorkCandidatesWithinBatch_Commit(t *testing.T) {
	// Exact-slot work duplicates collapse the same way; a different service
	// on an overlapping block stays a deliberate double-book.
	f := newDetectorFixture(nil)
	batch := []schedule.Candidate{
		workCandidate(monday, schedule.BlockAM),
		workCandidate(monday, schedule.BlockAM),
	}

	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.Len(t, result.Accepted, 1)
	assert.Len(t, result.Skipped, 1)
}

func TestCheck_MixedPTOAndWorkWithinBatch_HardBlocks(t *testing.T) {
	f := newDetectorFixture(nil)
	batch := []schedule.Candidate{
		ptoCandidate(monday, schedule.BlockBoth),
		workCandidate(monday, schedule.BlockAM),
	}

	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.NotEmpty(t, result.HardBlocks)
	assert.Equal(t, schedule.ConflictPTOOverlap, result.HardBlocks[0].Kind)
}

// =============================================================================
// STAGE 3: AVAILABILITY RULES
// =============================================================================

func TestCheck_HardRule_Blocks(t *testing.T) {
	f := newDetectorFixture(nil)
	f.mem.AddRule(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
		Reason: "admin morning",
	})

	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)}, schedule.CheckOptions{})
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.HardBlocks, 1)
	assert.Equal(t, schedule.ConflictRuleHard, result.HardBlocks[0].Kind)
	assert.Equal(t, "admin morning", result.HardBlocks[0].Reason)
}

func TestCheck_SoftRule_RequiresAcknowledgement(t *testing.T) {
	// GIVEN: A soft block on the slot
	f := newDetectorFixture(nil)
	f.mem.AddRule(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceSoft,
	})
	batch := []schedule.Candidate{workCandidate(monday, schedule.BlockAM)}

	// WHEN: Checked without acknowledgement
	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{})
	require.NoError(t, err)

	// THEN: Returned uncommitted with the warning
	assert.False(t, result.Committed)
	assert.Len(t, result.Warnings, 1)

	// WHEN: Resubmitted with acknowledgement
	result, err = f.detector.Check(context.Background(), batch, schedule.CheckOptions{AcknowledgeWarnings: true})
	require.NoError(t, err)

	// THEN: Commits, still reporting the warning
	assert.True(t, result.Committed)
	assert.Len(t, result.Warnings, 1)
	assert.Len(t, result.Accepted, 1)
}

func TestCheck_ForceOverrideSkipsRulesOnly(t *testing.T) {
	// GIVEN: A hard rule AND existing PTO on the slot
	f := newDetectorFixture(nil)
	f.mem.AddRule(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
	})

	// Force override bypasses the rule
	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)},
		schedule.CheckOptions{ForceOverride: true})
	require.NoError(t, err)
	assert.True(t, result.Committed)

	// But never the PTO invariant
	tuesday := monday.AddDays(1)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a-pto", Date: tuesday, Block: schedule.BlockBoth,
		ProviderID: "p1", ServiceID: "pto", IsPTO: true,
	}))
	result, err = f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(tuesday, schedule.BlockAM)},
		schedule.CheckOptions{ForceOverride: true})
	require.NoError(t, err)
	assert.False(t, result.Committed)
	assert.Len(t, result.HardBlocks, 1)
}

// =============================================================================
// STAGE 4: COMMIT
// =============================================================================

func TestCheck_CleanBatch_CommitsAtomicallyWithRecord(t *testing.T) {
	f := newDetectorFixture(nil)
	batch := []schedule.Candidate{
		workCandidate(monday, schedule.BlockAM),
		workCandidate(monday.AddDays(1), schedule.BlockPM),
	}

	result, err := f.detector.Check(context.Background(), batch, schedule.CheckOptions{Actor: "scheduler"})
	require.NoError(t, err)

	require.True(t, result.Committed)
	assert.Len(t, result.Accepted, 2)
	require.NotEmpty(t, result.RecordID)

	record, err := f.mem.GetRecord(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StateApplied, record.State)
	assert.Equal(t, "scheduler", record.Actor)
	assert.Len(t, record.CreatedIDs, 2)
}

func TestCheck_DuplicateSlot_ReportedAsInsertConflict(t *testing.T) {
	// GIVEN: The exact slot already exists (same provider, date, block, service)
	f := newDetectorFixture(nil)
	require.NoError(t, f.mem.CreateAssignment(context.Background(), schedule.Assignment{
		ID: "a1", Date: monday, Block: schedule.BlockAM,
		ProviderID: "p1", ServiceID: "clinic",
	}))

	// WHEN: A batch proposes the same slot again
	result, err := f.detector.Check(context.Background(),
		[]schedule.Candidate{workCandidate(monday, schedule.BlockAM)}, schedule.CheckOptions{})

	// THEN: The unique constraint surfaces as a result, not an error
	require.NoError(t, err)
	assert.False(t, result.Committed)
	require.Len(t, result.HardBlocks, 1)
	assert.Equal(t, schedule.ConflictInsert, result.HardBlocks[0].Kind)
}
