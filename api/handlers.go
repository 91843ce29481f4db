/*
handlers.go - HTTP API handlers for the schedule engine

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Assignments:
    POST   /api/assignments/check       Validate and commit a batch
    GET    /api/assignments             List assignments (filterable)
    DELETE /api/assignments/{id}        Delete one assignment

  PTO:
    POST   /api/pto                     Admin create (auto-approved saga)
    POST   /api/pto/cascade-delete      Remove one PTO day + satellites
    GET    /api/pto/reconcile           Leave ranges with missing days
    GET    /api/pto/leaves              List leave spans
    POST   /api/pto/requests            Submit a pending request
    GET    /api/pto/requests            List requests (filterable)
    POST   /api/pto/requests/{id}/approve
    POST   /api/pto/requests/{id}/deny

  Templates:
    POST   /api/templates/{id}/apply    Expand over a date range

  History:
    GET    /api/history                 Recent change records
    POST   /api/history/{id}/undo
    POST   /api/history/{id}/redo

  Reference:
    GET    /api/holidays
    GET    /api/providers/{id}/rules

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate, already reviewed, bad transition)
  - 422: Unsupported operation (mid-range delete)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/meridian/schedule-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Detector *schedule.Detector
	Manager  *schedule.Manager
	Expander *schedule.Expander
	Ledger   *schedule.Ledger

	Assignments schedule.AssignmentStore
	PTO         schedule.PTOStore
	History     schedule.HistoryStore
	Holidays    schedule.HolidayStore
	Rules       schedule.RuleStore

	Logger *zap.Logger
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// CheckBatch validates a batch of proposed assignments and commits it when
// clean. Blocks and unacknowledged warnings come back with 200 and
// committed=false; the caller decides how to resubmit.
// POST /api/assignments/check
func (h *Handler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	batch := make([]schedule.Candidate, len(req.Assignments))
	for i, c := range req.Assignments {
		batch[i] = c.toDomain()
	}

	result, err := h.Detector.Check(r.Context(), batch, schedule.CheckOptions{
		ForceOverride:       req.ForceOverride,
		AcknowledgeWarnings: req.AcknowledgeWarnings,
		Actor:               req.Actor,
	})
	if err != nil {
		writeDomainError(w, "Batch check failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// ListAssignments returns calendar rows, filterable by provider and range.
// GET /api/assignments?provider_id=&from=&to=&pto_only=
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	var filter schedule.AssignmentFilter
	q := r.URL.Query()
	filter.ProviderID = schedule.ProviderID(q.Get("provider_id"))
	filter.PTOOnly = q.Get("pto_only") == "true"
	if v := q.Get("from"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.To = &d
	}

	rows, err := h.Assignments.ListAssignments(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(rows))
	for i, a := range rows {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteAssignment removes one calendar row by ID.
// DELETE /api/assignments/{id}
func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := schedule.AssignmentID(chi.URLParam(r, "id"))
	if err := h.Assignments.DeleteAssignment(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PTO HANDLERS
// =============================================================================

// CreatePTO runs the admin creation saga: per-day calendar rows plus an
// auto-approved request and leave. Partial failures come back in the
// result body, not as an error status.
// POST /api/pto
func (h *Handler) CreatePTO(w http.ResponseWriter, r *http.Request) {
	var req CreatePTORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Manager.Create(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to create PTO", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreatePTOResultDTO(result))
}

// SubmitPTORequest files a pending request for later review.
// POST /api/pto/requests
func (h *Handler) SubmitPTORequest(w http.ResponseWriter, r *http.Request) {
	var req CreatePTORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	request, err := h.Manager.Submit(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPTORequestDTO(request))
}

// ListPTORequests returns requests, filterable by provider and status.
// GET /api/pto/requests?provider_id=&status=
func (h *Handler) ListPTORequests(w http.ResponseWriter, r *http.Request) {
	providerID := schedule.ProviderID(r.URL.Query().Get("provider_id"))
	status := schedule.RequestStatus(r.URL.Query().Get("status"))

	requests, err := h.PTO.ListRequests(r.Context(), providerID, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]PTORequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toPTORequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApprovePTORequest approves a pending request and materializes it.
// POST /api/pto/requests/{id}/approve
func (h *Handler) ApprovePTORequest(w http.ResponseWriter, r *http.Request) {
	id := schedule.RequestID(chi.URLParam(r, "id"))
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Manager.Approve(r.Context(), id, req.Reviewer)
	if err != nil {
		writeDomainError(w, "Failed to approve request", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreatePTOResultDTO(result))
}

// DenyPTORequest denies a pending request. Nothing is materialized.
// POST /api/pto/requests/{id}/deny
func (h *Handler) DenyPTORequest(w http.ResponseWriter, r *http.Request) {
	id := schedule.RequestID(chi.URLParam(r, "id"))
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	request, err := h.Manager.Deny(r.Context(), id, req.Reviewer, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to deny request", err)
		return
	}
	writeJSON(w, http.StatusOK, toPTORequestDTO(request))
}

// CascadeDeletePTO removes a provider's PTO assignments on one date and
// shrinks or deletes the containing request/leave ranges. Mid-range gaps
// surface in the result body as range_gaps.
// POST /api/pto/cascade-delete
func (h *Handler) CascadeDeletePTO(w http.ResponseWriter, r *http.Request) {
	var req CascadeDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Manager.CascadeDelete(r.Context(), schedule.ProviderID(req.ProviderID), req.Date)
	if err != nil {
		writeDomainError(w, "Failed to cascade delete", err)
		return
	}

	dto := CascadeResultDTO{
		AssignmentsDeleted: result.AssignmentsDeleted,
		RequestsDeleted:    result.RequestsDeleted,
		RequestsTrimmed:    result.RequestsTrimmed,
		LeavesDeleted:      result.LeavesDeleted,
		LeavesTrimmed:      result.LeavesTrimmed,
		StepErrors:         toStepErrorDTOs(result.StepErrors),
	}
	for _, g := range result.RangeGaps {
		dto.RangeGaps = append(dto.RangeGaps, RangeGapDTO{
			Kind:      g.Kind,
			ID:        g.ID,
			StartDate: g.Range.Start,
			EndDate:   g.Range.End,
			Date:      g.Date,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// ReconcilePTO reports leave ranges whose workdays lack PTO assignments.
// GET /api/pto/reconcile?provider_id=
func (h *Handler) ReconcilePTO(w http.ResponseWriter, r *http.Request) {
	providerID := schedule.ProviderID(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required", nil)
		return
	}

	discrepancies, err := h.Manager.ReconcileRanges(r.Context(), providerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconcile", err)
		return
	}

	dtos := make([]DiscrepancyDTO, len(discrepancies))
	for i, d := range discrepancies {
		dtos[i] = DiscrepancyDTO{
			LeaveID:   string(d.LeaveID),
			StartDate: d.Range.Start,
			EndDate:   d.Range.End,
			Missing:   d.Missing,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLeaves returns leave spans, optionally for one provider.
// GET /api/pto/leaves?provider_id=
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	providerID := schedule.ProviderID(r.URL.Query().Get("provider_id"))

	leaves, err := h.PTO.ListLeaves(r.Context(), providerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leaves", err)
		return
	}

	dtos := make([]LeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = LeaveDTO{
			ID:         string(l.ID),
			ProviderID: string(l.ProviderID),
			StartDate:  l.Start,
			EndDate:    l.End,
			LeaveType:  l.LeaveType,
			Reason:     l.Reason,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ApplyTemplate expands a template over a date range.
// POST /api/templates/{id}/apply
func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	id := schedule.TemplateID(chi.URLParam(r, "id"))
	var req ApplyTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Expander.Apply(r.Context(), id, req.StartDate, req.EndDate, req.FillEmptyOnly)
	if err != nil {
		writeDomainError(w, "Failed to apply template", err)
		return
	}

	dto := ApplyResultDTO{
		Created: result.Created,
		Skipped: result.Skipped,
		Errors:  result.Errors,
	}
	for _, c := range result.HolidayConflicts {
		dto.HolidayConflicts = append(dto.HolidayConflicts, HolidayConflictDTO{
			Date:        c.Date,
			HolidayName: c.HolidayName,
			ProviderID:  string(c.ProviderID),
			ServiceID:   string(c.ServiceID),
			TimeBlock:   string(c.Block),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// ListHistory returns recent change records, newest first.
// GET /api/history?limit=
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit (use a positive integer)", err)
			return
		}
		limit = n
	}
	records, err := h.History.ListRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history", err)
		return
	}

	dtos := make([]ChangeRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toChangeRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UndoChange inverts one recorded mutation.
// POST /api/history/{id}/undo
func (h *Handler) UndoChange(w http.ResponseWriter, r *http.Request) {
	id := schedule.RecordID(chi.URLParam(r, "id"))
	result, err := h.Ledger.Undo(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to undo", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResultDTO{
		Success:       result.Success,
		DeletedCount:  result.DeletedCount,
		RestoredCount: result.RestoredCount,
		Message:       result.Message,
	})
}

// RedoChange re-applies a previously undone mutation.
// POST /api/history/{id}/redo
func (h *Handler) RedoChange(w http.ResponseWriter, r *http.Request) {
	id := schedule.RecordID(chi.URLParam(r, "id"))
	result, err := h.Ledger.Redo(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to redo", err)
		return
	}
	writeJSON(w, http.StatusOK, RedoResultDTO{
		Success:      result.Success,
		DeletedCount: result.DeletedCount,
		CreatedCount: result.CreatedCount,
		Message:      result.Message,
	})
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			ID:               hol.ID,
			Date:             hol.Date,
			Name:             hol.Name,
			BlockAssignments: hol.BlockAssignments,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListProviderRules returns a provider's availability rules.
// GET /api/providers/{id}/rules
func (h *Handler) ListProviderRules(w http.ResponseWriter, r *http.Request) {
	providerID := schedule.ProviderID(chi.URLParam(r, "id"))
	rules, err := h.Rules.RulesFor(r.Context(), providerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = RuleDTO{
			ID:          rule.ID,
			ProviderID:  string(rule.ProviderID),
			ServiceID:   string(rule.ServiceID),
			DayOfWeek:   int(rule.DayOfWeek),
			TimeBlock:   string(rule.Block),
			RuleType:    string(rule.Type),
			Enforcement: string(rule.Enforcement),
			Reason:      rule.Reason,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func toBatchResultDTO(r schedule.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		Accepted:   []AssignmentDTO{},
		Skipped:    []CandidateDTO{},
		Warnings:   []ConflictDTO{},
		HardBlocks: []ConflictDTO{},
		Committed:  r.Committed,
		RecordID:   string(r.RecordID),
	}
	for _, a := range r.Accepted {
		dto.Accepted = append(dto.Accepted, toAssignmentDTO(a))
	}
	for _, c := range r.Skipped {
		dto.Skipped = append(dto.Skipped, CandidateDTO{
			Date:       c.Date,
			TimeBlock:  string(c.Block),
			ProviderID: string(c.ProviderID),
			ServiceID:  string(c.ServiceID),
			RoomCount:  c.RoomCount,
			IsPTO:      c.IsPTO,
			IsCovering: c.IsCovering,
			Notes:      c.Notes,
		})
	}
	for _, c := range r.Warnings {
		dto.Warnings = append(dto.Warnings, toConflictDTO(c))
	}
	for _, c := range r.HardBlocks {
		dto.HardBlocks = append(dto.HardBlocks, toConflictDTO(c))
	}
	return dto
}

func toConflictDTO(c schedule.Conflict) ConflictDTO {
	return ConflictDTO{
		ProviderID: string(c.ProviderID),
		ServiceID:  string(c.ServiceID),
		Date:       c.Date,
		TimeBlock:  string(c.Block),
		Kind:       string(c.Kind),
		Reason:     c.Reason,
	}
}

// writeDomainError maps typed domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case schedule.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case schedule.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case schedule.IsUnsupported(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
