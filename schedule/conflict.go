/*
conflict.go - Batch validation pipeline for proposed assignments

PURPOSE:
  The Detector classifies a batch of candidate assignments into accepted,
  warned, and hard-blocked, then commits the batch only when it is clean.

PIPELINE (in order, short-circuiting on the first stage that blocks):
  1. Holiday filter   - blocking holidays reject non-inpatient services
  2. PTO overlap      - a provider cannot be on PTO and scheduled to work
                        for an overlapping time block
  3. Availability rules (skipped under ForceOverride) - hard rules fail
     the batch; soft rules collect warnings the caller must acknowledge
  4. Commit           - one atomic set-insert, plus a change record so the
                        batch can be undone

FAILURE SEMANTICS:
  A classification failure (service lookup miss, store error during
  lookup) is a hard block for that candidate, never a silent allow.
  Validation runs before everything; invalid candidates reject the call
  before any side effect.

CONCURRENCY:
  Existence checks are batched ahead of mutation, but no locking is used.
  Two concurrent submissions can both pass validation and collide at
  insert; the unique constraint is the final arbiter and is surfaced as
  an insert conflict, not a fatal error.

SEE ALSO:
  - rules.go: Stage 3 evaluator
  - history.go: Change record written on commit
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
// CANDIDATES AND CONFLICTS
// =============================================================================

// Candidate is a proposed assignment, not yet persisted.
type Candidate struct {
	Date       Date
	Block      TimeBlock
	ProviderID ProviderID
	ServiceID  ServiceID
	RoomCount  int
	IsPTO      bool
	IsCovering bool
	Notes      string
}

func (c Candidate) validate() error {
	switch {
	case c.ProviderID == "":
		return &ValidationError{Field: "provider_id", Message: "required"}
	case c.ServiceID == "":
		return &ValidationError{Field: "service_id", Message: "required"}
	case c.Date.IsZero():
		return &ValidationError{Field: "date", Message: "required"}
	case !c.Block.Valid():
		return &ValidationError{Field: "time_block", Message: fmt.Sprintf("unknown block %q", c.Block)}
	}
	return nil
}

type ConflictKind string

const (
	ConflictHoliday    ConflictKind = "holiday"
	ConflictPTOOverlap ConflictKind = "pto_overlap"
	ConflictRuleHard   ConflictKind = "rule_hard"
	ConflictRuleSoft   ConflictKind = "rule_soft"
	ConflictLookup     ConflictKind = "lookup_failed"
	ConflictInsert     ConflictKind = "insert_conflict"
)

// Conflict describes why a candidate was warned or blocked, with enough
// detail to display to a scheduler.
type Conflict struct {
	ProviderID ProviderID
	ServiceID  ServiceID
	Date       Date
	Block      TimeBlock
	Kind       ConflictKind
	Reason     string
	Rules      []AvailabilityRule
}

// CheckOptions tune the pipeline per call.
type CheckOptions struct {
	// ForceOverride skips availability rule evaluation (stage 3).
	// Holiday and PTO invariants are never overridable.
	ForceOverride bool

	// AcknowledgeWarnings commits past soft warnings. Without it, a batch
	// that draws warnings is returned uncommitted for explicit resubmission.
	AcknowledgeWarnings bool

	// Actor is recorded on the change record.
	Actor string
}

// BatchResult reports the classification and, when committed, the
// persisted rows and the change record that can undo them.
type BatchResult struct {
	Accepted   []Assignment
	Skipped    []Candidate // PTO candidates already covered by existing PTO
	Warnings   []Conflict
	HardBlocks []Conflict
	Committed  bool
	RecordID   RecordID
}

// =============================================================================
// DETECTOR
// =============================================================================

type Detector struct {
	Assignments AssignmentStore
	Catalog     ServiceCatalog
	Evaluator   *RuleEvaluator
	Calendar    HolidayCalendar
	Inpatient   InpatientServices
	Ledger      *Ledger // optional; nil disables undo tracking
	Logger      *zap.Logger
}

func NewDetector(assignments AssignmentStore, catalog ServiceCatalog, evaluator *RuleEvaluator, calendar HolidayCalendar, inpatient InpatientServices, ledger *Ledger, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = DefaultCalendar{}
	}
	return &Detector{
		Assignments: assignments,
		Catalog:     catalog,
		Evaluator:   evaluator,
		Calendar:    calendar,
		Inpatient:   inpatient,
		Ledger:      ledger,
		Logger:      logger,
	}
}

// Check validates a batch and commits it when clean. Hard blocks and
// unacknowledged warnings leave the batch uncommitted; only infrastructure
// and validation failures surface as errors.
func (d *Detector) Check(ctx context.Context, batch []Candidate, opts CheckOptions) (BatchResult, error) {
	var result BatchResult

	if len(batch) == 0 {
		return result, &ValidationError{Field: "assignments", Message: "batch is empty"}
	}
	for _, c := range batch {
		if err := c.validate(); err != nil {
			return result, err
		}
	}

	// Stage 1: holiday filter.
	result.HardBlocks = d.holidayBlocks(ctx, batch)
	if len(result.HardBlocks) > 0 {
		return result, nil
	}

	// Stage 2: PTO overlap against existing rows and within the batch.
	remaining, blocks, skipped, err := d.ptoConflicts(ctx, batch)
	if err != nil {
		return result, err
	}
	result.Skipped = skipped
	result.HardBlocks = blocks
	if len(result.HardBlocks) > 0 {
		return result, nil
	}

	// Stage 3: availability rules.
	if !opts.ForceOverride {
		for _, c := range remaining {
			eval, err := d.Evaluator.Evaluate(ctx, c.ProviderID, c.ServiceID, c.Date, c.Block)
			if err != nil {
				// Lookup failures block, never silently allow.
				result.HardBlocks = append(result.HardBlocks, conflictOf(c, ConflictLookup, fmt.Sprintf("rule lookup failed: %v", err), nil))
				continue
			}
			switch eval.Decision {
			case DecisionHardBlock:
				result.HardBlocks = append(result.HardBlocks, conflictOf(c, ConflictRuleHard, ruleReason(eval.Matched), eval.Matched))
			case DecisionWarn:
				result.Warnings = append(result.Warnings, conflictOf(c, ConflictRuleSoft, ruleReason(eval.Matched), eval.Matched))
			}
		}
		if len(result.HardBlocks) > 0 {
			return result, nil
		}
		if len(result.Warnings) > 0 && !opts.AcknowledgeWarnings {
			return result, nil
		}
	}

	// Stage 4: commit as one set-insert. All-or-nothing.
	if len(remaining) == 0 {
		result.Committed = true // everything already covered by existing PTO
		return result, nil
	}

	rows := make([]Assignment, len(remaining))
	now := time.Now().UTC()
	for i, c := range remaining {
		rows[i] = Assignment{
			ID:         AssignmentID(uuid.NewString()),
			Date:       c.Date,
			Block:      c.Block,
			ProviderID: c.ProviderID,
			ServiceID:  c.ServiceID,
			RoomCount:  c.RoomCount,
			IsPTO:      c.IsPTO,
			IsCovering: c.IsCovering,
			Notes:      c.Notes,
			CreatedAt:  now,
		}
	}

	if err := d.Assignments.CreateAssignments(ctx, rows); err != nil {
		if errors.Is(err, ErrDuplicateAssignment) {
			// Lost a race with a concurrent submission. Report, don't fail.
			result.HardBlocks = append(result.HardBlocks, Conflict{
				Kind:   ConflictInsert,
				Reason: "a conflicting assignment was inserted concurrently; resubmit",
			})
			return result, nil
		}
		return result, err
	}

	result.Accepted = rows
	result.Committed = true

	if d.Ledger != nil {
		record, err := d.Ledger.RecordCreate(ctx, rows, opts.Actor)
		if err != nil {
			// The batch is committed; a missing change record only costs undo.
			d.Logger.Warn("failed to record change history",
				zap.Int("created", len(rows)), zap.Error(err))
		} else {
			result.RecordID = record.ID
		}
	}
	return result, nil
}

func (d *Detector) holidayBlocks(ctx context.Context, batch []Candidate) []Conflict {
	var blocks []Conflict
	for _, c := range batch {
		h := d.Calendar.Lookup(c.Date)
		if h == nil || !h.BlockAssignments {
			continue
		}
		svc, err := d.Catalog.ServiceByID(ctx, c.ServiceID)
		if err != nil {
			blocks = append(blocks, conflictOf(c, ConflictLookup, fmt.Sprintf("service lookup failed: %v", err), nil))
			continue
		}
		if d.Inpatient.IsInpatient(svc.Name) {
			continue
		}
		blocks = append(blocks, conflictOf(c, ConflictHoliday,
			fmt.Sprintf("%s is a blocked holiday (%s); %s is not an inpatient service", c.Date, h.Name, svc.Name), nil))
	}
	return blocks
}

// ptoConflicts checks the PTO/work exclusivity invariant. It returns the
// candidates still eligible for insert, PTO-vs-work hard blocks, and PTO
// candidates skipped because the slot is already covered by existing PTO.
func (d *Detector) ptoConflicts(ctx context.Context, batch []Candidate) (remaining []Candidate, blocks []Conflict, skipped []Candidate, err error) {
	providers := make([]ProviderID, 0, len(batch))
	dates := make([]Date, 0, len(batch))
	seenP := map[ProviderID]bool{}
	seenD := map[string]bool{}
	for _, c := range batch {
		if !seenP[c.ProviderID] {
			seenP[c.ProviderID] = true
			providers = append(providers, c.ProviderID)
		}
		if !seenD[c.Date.String()] {
			seenD[c.Date.String()] = true
			dates = append(dates, c.Date)
		}
	}

	existing, err := d.Assignments.ListAssignments(ctx, AssignmentFilter{Providers: providers, Dates: dates})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("existing assignment lookup: %w", err)
	}

	for i, c := range batch {
		conflicted, skip := false, false
		for _, a := range existing {
			if a.ProviderID != c.ProviderID || !a.Date.Equal(c.Date) || !a.Block.Overlaps(c.Block) {
				continue
			}
			if a.IsPTO != c.IsPTO {
				blocks = append(blocks, conflictOf(c, ConflictPTOOverlap,
					fmt.Sprintf("provider %s has a conflicting %s assignment on %s (%s)", c.ProviderID, ptoLabel(a.IsPTO), a.Date, a.Block), nil))
				conflicted = true
				break
			}
			if a.IsPTO && c.IsPTO {
				skip = true // idempotent: PTO already on the calendar
			}
		}
		if conflicted {
			continue
		}

		// PTO exclusivity also holds within the batch itself. Duplicates of
		// an earlier candidate collapse into it instead of racing it to the
		// unique index.
		for j := 0; j < i; j++ {
			other := batch[j]
			if other.ProviderID != c.ProviderID || !other.Date.Equal(c.Date) || !other.Block.Overlaps(c.Block) {
				continue
			}
			if other.IsPTO != c.IsPTO {
				blocks = append(blocks, conflictOf(c, ConflictPTOOverlap,
					fmt.Sprintf("batch contains both PTO and work for provider %s on %s", c.ProviderID, c.Date), nil))
				conflicted = true
				break
			}
			if c.IsPTO || (other.Block == c.Block && other.ServiceID == c.ServiceID) {
				skip = true // idempotent: the earlier candidate covers this slot
				break
			}
		}
		if conflicted {
			continue
		}

		if skip {
			skipped = append(skipped, c)
			continue
		}
		remaining = append(remaining, c)
	}
	return remaining, blocks, skipped, nil
}

func conflictOf(c Candidate, kind ConflictKind, reason string, rules []AvailabilityRule) Conflict {
	return Conflict{
		ProviderID: c.ProviderID,
		ServiceID:  c.ServiceID,
		Date:       c.Date,
		Block:      c.Block,
		Kind:       kind,
		Reason:     reason,
		Rules:      rules,
	}
}

func ruleReason(rules []AvailabilityRule) string {
	for _, r := range rules {
		if r.Type == RuleBlock && r.Reason != "" {
			return r.Reason
		}
	}
	return "blocked by availability rule"
}

func ptoLabel(isPTO bool) string {
	if isPTO {
		return "PTO"
	}
	return "work"
}
