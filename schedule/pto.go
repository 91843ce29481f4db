/*
pto.go - PTO lifecycle saga across three denormalized stores

PURPOSE:
  PTO state lives in three places: PTO-flagged calendar assignments (the
  source of truth), PTORequest rows (the review workflow), and
  ProviderLeave rows (the reporting view). The Manager is the only writer
  allowed to touch more than one of these in a single logical operation.

SAGA SEMANTICS:
  There is no transactional wrapping available, so each multi-store
  operation is an ordered list of independent best-effort steps. A failed
  step is logged and reported in the result; it does not roll back the
  others. Calendar rows without a leave record is acceptable degraded
  state; total failure is not.

CREATE:
  1. Resolve the provider's configured workdays (default Mon-Fri)
  2. Expand the range into concrete work dates
  3. Insert one PTO assignment per date against the reserved PTO service,
     skipping dates already covered (idempotent)
  4. Create one auto-approved PTORequest spanning the full range
  5. Create one ProviderLeave spanning the full range
  6. Notify (fire-and-forget)

CASCADE DELETE:
  Removes the PTO assignments on one date, then shrinks or deletes the
  containing request/leave ranges. A date strictly inside a multi-day
  range cannot be split; the record is left untouched and the gap is
  reported as a typed range gap instead of being silently masked.
  ReconcileRanges finds such gaps after the fact.

SEE ALSO:
  - calendar.go: Workday expansion and day accounting
  - store.go: PTOStore / AssignmentStore contracts
*/
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// INPUTS AND RESULTS
// =============================================================================

type CreatePTO struct {
	ProviderID ProviderID
	Start      Date
	End        Date
	Block      TimeBlock
	LeaveType  string
	Reason     string
	Actor      string
}

func (in CreatePTO) validate() error {
	switch {
	case in.ProviderID == "":
		return &ValidationError{Field: "provider_id", Message: "required"}
	case in.Start.IsZero():
		return &ValidationError{Field: "start_date", Message: "required"}
	case in.End.IsZero():
		return &ValidationError{Field: "end_date", Message: "required"}
	case !in.Block.Valid():
		return &ValidationError{Field: "time_block", Message: fmt.Sprintf("unknown block %q", in.Block)}
	case in.LeaveType == "":
		return &ValidationError{Field: "leave_type", Message: "required"}
	}
	if in.End.Before(in.Start) {
		return ErrInvalidDateRange
	}
	return nil
}

// StepError reports one failed saga step. The operation continues past it.
type StepError struct {
	Step    string
	Message string
}

type CreatePTOResult struct {
	DaysCreated int
	DaysSkipped int
	DaysCharged decimal.Decimal
	RequestID   RequestID
	LeaveID     LeaveID
	StepErrors  []StepError
}

// RangeGap reports a satellite record a cascade delete could not shrink.
type RangeGap struct {
	Kind  string // "request" or "leave"
	ID    string
	Range DateRange
	Date  Date
}

type CascadeResult struct {
	AssignmentsDeleted int
	RequestsDeleted    int
	RequestsTrimmed    int
	LeavesDeleted      int
	LeavesTrimmed      int
	RangeGaps          []RangeGap
	StepErrors         []StepError
}

// RangeDiscrepancy reports workdays inside a leave range with no
// corresponding PTO assignment on the calendar.
type RangeDiscrepancy struct {
	LeaveID LeaveID
	Range   DateRange
	Missing []Date
}

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	Assignments AssignmentStore
	PTO         PTOStore
	Directory   ProviderDirectory
	Calendar    HolidayCalendar

	// PTOServiceID is the well-known identifier of the reserved PTO
	// service, injected at configuration time rather than resolved by
	// name on every call.
	PTOServiceID ServiceID

	Notifier Notifier
	Logger   *zap.Logger
}

func NewManager(assignments AssignmentStore, pto PTOStore, directory ProviderDirectory, calendar HolidayCalendar, ptoServiceID ServiceID, notifier Notifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if calendar == nil {
		calendar = DefaultCalendar{}
	}
	return &Manager{
		Assignments:  assignments,
		PTO:          pto,
		Directory:    directory,
		Calendar:     calendar,
		PTOServiceID: ptoServiceID,
		Notifier:     notifier,
		Logger:       logger,
	}
}

// =============================================================================
// CREATE (admin entry, auto-approved)
// =============================================================================

// Create runs the full PTO creation saga: per-day calendar rows plus one
// approved request and one leave spanning the range.
func (m *Manager) Create(ctx context.Context, in CreatePTO) (CreatePTOResult, error) {
	var result CreatePTOResult
	if err := in.validate(); err != nil {
		return result, err
	}

	workdays := m.workdays(ctx, in.ProviderID)
	span := DateRange{Start: in.Start, End: in.End}
	dates := WorkdaysIn(span, workdays)
	result.DaysCharged = DaysCharged(span, in.Block, workdays, m.Calendar)

	// Step 1: calendar rows, one per work date, idempotent.
	created, skipped, stepErrs := m.createAssignments(ctx, in, dates)
	result.DaysCreated = created
	result.DaysSkipped = skipped
	result.StepErrors = append(result.StepErrors, stepErrs...)

	now := time.Now().UTC()
	request := PTORequest{
		ID:         RequestID(uuid.NewString()),
		ProviderID: in.ProviderID,
		Start:      in.Start,
		End:        in.End,
		LeaveType:  in.LeaveType,
		Block:      in.Block,
		Status:     StatusApproved,
		Reason:     in.Reason,
		ReviewedBy: in.Actor,
		ReviewedAt: &now,
		CreatedAt:  now,
	}

	// Step 2: one auto-approved request spanning the full range.
	if err := m.PTO.CreateRequest(ctx, request); err != nil {
		m.Logger.Error("pto create: request write failed",
			zap.String("provider_id", string(in.ProviderID)), zap.Error(err))
		result.StepErrors = append(result.StepErrors, StepError{Step: "create_request", Message: err.Error()})
	} else {
		result.RequestID = request.ID
	}

	// Step 3: one leave record spanning the full range.
	leave := ProviderLeave{
		ID:         LeaveID(uuid.NewString()),
		ProviderID: in.ProviderID,
		Start:      in.Start,
		End:        in.End,
		LeaveType:  in.LeaveType,
		Reason:     in.Reason,
	}
	if err := m.PTO.CreateLeave(ctx, leave); err != nil {
		m.Logger.Error("pto create: leave write failed",
			zap.String("provider_id", string(in.ProviderID)), zap.Error(err))
		result.StepErrors = append(result.StepErrors, StepError{Step: "create_leave", Message: err.Error()})
	} else {
		result.LeaveID = leave.ID
	}

	// Step 4: notification. Failures never fail the operation.
	if result.RequestID != "" {
		if err := m.Notifier.PTOApproved(ctx, request); err != nil {
			m.Logger.Warn("pto create: notification failed", zap.Error(err))
		}
	}
	return result, nil
}

func (m *Manager) createAssignments(ctx context.Context, in CreatePTO, dates []Date) (created, skipped int, stepErrs []StepError) {
	existing, err := m.Assignments.ListAssignments(ctx, AssignmentFilter{
		ProviderID:    in.ProviderID,
		Dates:         dates,
		OverlapsBlock: &in.Block,
		PTOOnly:       true,
	})
	covered := map[string]bool{}
	if err != nil {
		// Fall through to per-row inserts; the unique constraint catches
		// duplicates the pre-check would have found.
		m.Logger.Warn("pto create: existing-set lookup failed", zap.Error(err))
	} else {
		for _, a := range existing {
			covered[a.Date.String()] = true
		}
	}

	for _, d := range dates {
		if covered[d.String()] {
			skipped++
			continue
		}
		a := Assignment{
			ID:         AssignmentID(uuid.NewString()),
			Date:       d,
			Block:      in.Block,
			ProviderID: in.ProviderID,
			ServiceID:  m.PTOServiceID,
			IsPTO:      true,
			Notes:      in.Reason,
			CreatedAt:  time.Now().UTC(),
		}
		switch err := m.Assignments.CreateAssignment(ctx, a); {
		case err == nil:
			created++
		case errors.Is(err, ErrDuplicateAssignment):
			skipped++
		default:
			m.Logger.Error("pto create: assignment write failed",
				zap.String("date", d.String()), zap.Error(err))
			stepErrs = append(stepErrs, StepError{
				Step:    "create_assignment " + d.String(),
				Message: err.Error(),
			})
		}
	}
	return created, skipped, stepErrs
}

func (m *Manager) workdays(ctx context.Context, providerID ProviderID) []time.Weekday {
	workdays, err := m.Directory.Workdays(ctx, providerID)
	if err != nil || len(workdays) == 0 {
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			m.Logger.Warn("workday lookup failed; using Mon-Fri",
				zap.String("provider_id", string(providerID)), zap.Error(err))
		}
		return DefaultWorkdays
	}
	return workdays
}

// =============================================================================
// REVIEW WORKFLOW (submitted requests)
// =============================================================================

// Submit files a pending request. Nothing is materialized until approval.
func (m *Manager) Submit(ctx context.Context, in CreatePTO) (PTORequest, error) {
	if err := in.validate(); err != nil {
		return PTORequest{}, err
	}
	request := PTORequest{
		ID:         RequestID(uuid.NewString()),
		ProviderID: in.ProviderID,
		Start:      in.Start,
		End:        in.End,
		LeaveType:  in.LeaveType,
		Block:      in.Block,
		Status:     StatusPending,
		Reason:     in.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.PTO.CreateRequest(ctx, request); err != nil {
		return PTORequest{}, fmt.Errorf("submit request: %w", err)
	}
	return request, nil
}

// Approve marks a pending request approved and materializes its calendar
// rows and leave record, exactly like an admin Create.
func (m *Manager) Approve(ctx context.Context, id RequestID, reviewer string) (CreatePTOResult, error) {
	var result CreatePTOResult

	request, err := m.PTO.GetRequest(ctx, id)
	if err != nil {
		return result, err
	}
	if request.Status != StatusPending {
		return result, ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	request.Status = StatusApproved
	request.ReviewedBy = reviewer
	request.ReviewedAt = &now
	if err := m.PTO.UpdateRequest(ctx, request); err != nil {
		return result, fmt.Errorf("approve request: %w", err)
	}
	result.RequestID = request.ID

	in := CreatePTO{
		ProviderID: request.ProviderID,
		Start:      request.Start,
		End:        request.End,
		Block:      request.Block,
		LeaveType:  request.LeaveType,
		Reason:     request.Reason,
		Actor:      reviewer,
	}
	workdays := m.workdays(ctx, request.ProviderID)
	span := DateRange{Start: request.Start, End: request.End}
	result.DaysCharged = DaysCharged(span, request.Block, workdays, m.Calendar)

	created, skipped, stepErrs := m.createAssignments(ctx, in, WorkdaysIn(span, workdays))
	result.DaysCreated = created
	result.DaysSkipped = skipped
	result.StepErrors = append(result.StepErrors, stepErrs...)

	leave := ProviderLeave{
		ID:         LeaveID(uuid.NewString()),
		ProviderID: request.ProviderID,
		Start:      request.Start,
		End:        request.End,
		LeaveType:  request.LeaveType,
		Reason:     request.Reason,
	}
	if err := m.PTO.CreateLeave(ctx, leave); err != nil {
		m.Logger.Error("approve: leave write failed", zap.Error(err))
		result.StepErrors = append(result.StepErrors, StepError{Step: "create_leave", Message: err.Error()})
	} else {
		result.LeaveID = leave.ID
	}

	if err := m.Notifier.PTOApproved(ctx, request); err != nil {
		m.Logger.Warn("approve: notification failed", zap.Error(err))
	}
	return result, nil
}

// Deny marks a pending request denied. Nothing is materialized.
func (m *Manager) Deny(ctx context.Context, id RequestID, reviewer, reason string) (PTORequest, error) {
	request, err := m.PTO.GetRequest(ctx, id)
	if err != nil {
		return PTORequest{}, err
	}
	if request.Status != StatusPending {
		return PTORequest{}, ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	request.Status = StatusDenied
	request.ReviewedBy = reviewer
	request.ReviewedAt = &now
	if reason != "" {
		request.Reason = reason
	}
	if err := m.PTO.UpdateRequest(ctx, request); err != nil {
		return PTORequest{}, fmt.Errorf("deny request: %w", err)
	}

	if err := m.Notifier.PTODenied(ctx, request); err != nil {
		m.Logger.Warn("deny: notification failed", zap.Error(err))
	}
	return request, nil
}

// =============================================================================
// CASCADE DELETE
// =============================================================================

// CascadeDelete removes the provider's PTO assignments on one date and
// propagates the deletion into the containing request/leave ranges.
func (m *Manager) CascadeDelete(ctx context.Context, providerID ProviderID, d Date) (CascadeResult, error) {
	var result CascadeResult
	if providerID == "" {
		return result, &ValidationError{Field: "provider_id", Message: "required"}
	}
	if d.IsZero() {
		return result, &ValidationError{Field: "date", Message: "required"}
	}

	// Calendar rows go first: they are the source of truth.
	rows, err := m.Assignments.ListAssignments(ctx, AssignmentFilter{
		ProviderID: providerID,
		Dates:      []Date{d},
		PTOOnly:    true,
	})
	if err != nil {
		return result, fmt.Errorf("cascade: list assignments: %w", err)
	}
	ids := make([]AssignmentID, len(rows))
	for i, a := range rows {
		ids[i] = a.ID
	}
	deleted, err := m.Assignments.DeleteAssignments(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("cascade: delete assignments: %w", err)
	}
	result.AssignmentsDeleted = deleted

	// Satellite records: shrink or delete, best effort.
	requests, err := m.PTO.RequestsContaining(ctx, providerID, d)
	if err != nil {
		m.Logger.Error("cascade: request lookup failed", zap.Error(err))
		result.StepErrors = append(result.StepErrors, StepError{Step: "lookup_requests", Message: err.Error()})
	}
	for _, r := range requests {
		m.cascadeRequest(ctx, r, d, &result)
	}

	leaves, err := m.PTO.LeavesContaining(ctx, providerID, d)
	if err != nil {
		m.Logger.Error("cascade: leave lookup failed", zap.Error(err))
		result.StepErrors = append(result.StepErrors, StepError{Step: "lookup_leaves", Message: err.Error()})
	}
	for _, l := range leaves {
		m.cascadeLeave(ctx, l, d, &result)
	}

	return result, nil
}

func (m *Manager) cascadeRequest(ctx context.Context, r PTORequest, d Date, result *CascadeResult) {
	span := DateRange{Start: r.Start, End: r.End}
	switch trimmed, gap := trimRange(span, d); {
	case gap:
		result.RangeGaps = append(result.RangeGaps, RangeGap{Kind: "request", ID: string(r.ID), Range: span, Date: d})
	case trimmed == nil:
		if err := m.PTO.DeleteRequest(ctx, r.ID); err != nil {
			m.Logger.Error("cascade: request delete failed", zap.Error(err))
			result.StepErrors = append(result.StepErrors, StepError{Step: "delete_request", Message: err.Error()})
			return
		}
		result.RequestsDeleted++
	default:
		r.Start, r.End = trimmed.Start, trimmed.End
		if err := m.PTO.UpdateRequest(ctx, r); err != nil {
			m.Logger.Error("cascade: request trim failed", zap.Error(err))
			result.StepErrors = append(result.StepErrors, StepError{Step: "trim_request", Message: err.Error()})
			return
		}
		result.RequestsTrimmed++
	}
}

func (m *Manager) cascadeLeave(ctx context.Context, l ProviderLeave, d Date, result *CascadeResult) {
	span := DateRange{Start: l.Start, End: l.End}
	switch trimmed, gap := trimRange(span, d); {
	case gap:
		result.RangeGaps = append(result.RangeGaps, RangeGap{Kind: "leave", ID: string(l.ID), Range: span, Date: d})
	case trimmed == nil:
		if err := m.PTO.DeleteLeave(ctx, l.ID); err != nil {
			m.Logger.Error("cascade: leave delete failed", zap.Error(err))
			result.StepErrors = append(result.StepErrors, StepError{Step: "delete_leave", Message: err.Error()})
			return
		}
		result.LeavesDeleted++
	default:
		if err := m.PTO.UpdateLeaveRange(ctx, l.ID, *trimmed); err != nil {
			m.Logger.Error("cascade: leave trim failed", zap.Error(err))
			result.StepErrors = append(result.StepErrors, StepError{Step: "trim_leave", Message: err.Error()})
			return
		}
		result.LeavesTrimmed++
	}
}

// trimRange computes how a range shrinks when one date is removed.
// Returns (nil, false) when the whole record should be deleted,
// (&newRange, false) when it shrinks, and (nil, true) for the
// unsupported strict-interior case.
func trimRange(span DateRange, d Date) (*DateRange, bool) {
	switch {
	case span.Start.Equal(d) && span.End.Equal(d):
		return nil, false
	case span.Start.Equal(d):
		start := NextWorkday(d)
		if start.After(span.End) {
			return nil, false // nothing left in range
		}
		return &DateRange{Start: start, End: span.End}, false
	case span.End.Equal(d):
		end := PreviousWorkday(d)
		if end.Before(span.Start) {
			return nil, false
		}
		return &DateRange{Start: span.Start, End: end}, false
	default:
		return nil, true
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileRanges reports leave ranges whose workdays have no backing PTO
// assignment (the gaps a mid-range cascade delete leaves behind).
func (m *Manager) ReconcileRanges(ctx context.Context, providerID ProviderID) ([]RangeDiscrepancy, error) {
	leaves, err := m.PTO.ListLeaves(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list leaves: %w", err)
	}

	workdays := m.workdays(ctx, providerID)
	var out []RangeDiscrepancy
	for _, l := range leaves {
		span := DateRange{Start: l.Start, End: l.End}
		dates := WorkdaysIn(span, workdays)
		rows, err := m.Assignments.ListAssignments(ctx, AssignmentFilter{
			ProviderID: providerID,
			Dates:      dates,
			PTOOnly:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list assignments: %w", err)
		}
		have := map[string]bool{}
		for _, a := range rows {
			have[a.Date.String()] = true
		}

		var missing []Date
		for _, d := range dates {
			if !have[d.String()] {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			out = append(out, RangeDiscrepancy{LeaveID: l.ID, Range: span, Missing: missing})
		}
	}
	return out, nil
}
