/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All dates cross the wire as YYYY-MM-DD strings. schedule.Date handles
  the JSON round-trip itself, so DTOs embed it directly.

VALIDATION:
  Structural validation (required fields, block values, range ordering)
  lives in the domain layer; handlers only translate the resulting typed
  errors into HTTP statuses.

SEE ALSO:
  - handlers.go: Uses these types
  - schedule/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/meridian/schedule-engine/schedule"
)

// =============================================================================
// BATCH CHECK
// =============================================================================

// CandidateDTO is one proposed assignment in a batch check.
type CandidateDTO struct {
	Date       schedule.Date `json:"date"`
	TimeBlock  string        `json:"time_block"`
	ProviderID string        `json:"provider_id"`
	ServiceID  string        `json:"service_id"`
	RoomCount  int           `json:"room_count,omitempty"`
	IsPTO      bool          `json:"is_pto,omitempty"`
	IsCovering bool          `json:"is_covering,omitempty"`
	Notes      string        `json:"notes,omitempty"`
}

func (c CandidateDTO) toDomain() schedule.Candidate {
	return schedule.Candidate{
		Date:       c.Date,
		Block:      schedule.TimeBlock(c.TimeBlock),
		ProviderID: schedule.ProviderID(c.ProviderID),
		ServiceID:  schedule.ServiceID(c.ServiceID),
		RoomCount:  c.RoomCount,
		IsPTO:      c.IsPTO,
		IsCovering: c.IsCovering,
		Notes:      c.Notes,
	}
}

// CheckRequest is the request body for a batch validation/commit.
type CheckRequest struct {
	Assignments         []CandidateDTO `json:"assignments"`
	ForceOverride       bool           `json:"force_override,omitempty"`
	AcknowledgeWarnings bool           `json:"acknowledge_warnings,omitempty"`
	Actor               string         `json:"actor,omitempty"`
}

// ConflictDTO describes one warned or blocked candidate.
type ConflictDTO struct {
	ProviderID string        `json:"provider_id"`
	ServiceID  string        `json:"service_id"`
	Date       schedule.Date `json:"date"`
	TimeBlock  string        `json:"time_block"`
	Kind       string        `json:"kind"`
	Reason     string        `json:"reason"`
}

// BatchResultDTO reports the outcome of a batch check.
type BatchResultDTO struct {
	Accepted   []AssignmentDTO `json:"accepted"`
	Skipped    []CandidateDTO  `json:"skipped"`
	Warnings   []ConflictDTO   `json:"warnings"`
	HardBlocks []ConflictDTO   `json:"hard_blocks"`
	Committed  bool            `json:"committed"`
	RecordID   string          `json:"record_id,omitempty"`
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// AssignmentDTO represents one calendar row.
type AssignmentDTO struct {
	ID         string        `json:"id"`
	Date       schedule.Date `json:"date"`
	TimeBlock  string        `json:"time_block"`
	ProviderID string        `json:"provider_id"`
	ServiceID  string        `json:"service_id"`
	RoomCount  int           `json:"room_count,omitempty"`
	IsPTO      bool          `json:"is_pto"`
	IsCovering bool          `json:"is_covering,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
}

func toAssignmentDTO(a schedule.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:         string(a.ID),
		Date:       a.Date,
		TimeBlock:  string(a.Block),
		ProviderID: string(a.ProviderID),
		ServiceID:  string(a.ServiceID),
		RoomCount:  a.RoomCount,
		IsPTO:      a.IsPTO,
		IsCovering: a.IsCovering,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PTO
// =============================================================================

// CreatePTORequest is shared by the admin create and submit endpoints.
type CreatePTORequest struct {
	ProviderID string        `json:"provider_id"`
	StartDate  schedule.Date `json:"start_date"`
	EndDate    schedule.Date `json:"end_date"`
	TimeBlock  string        `json:"time_block"`
	LeaveType  string        `json:"leave_type"`
	Reason     string        `json:"reason,omitempty"`
	Actor      string        `json:"actor,omitempty"`
}

func (r CreatePTORequest) toDomain() schedule.CreatePTO {
	return schedule.CreatePTO{
		ProviderID: schedule.ProviderID(r.ProviderID),
		Start:      r.StartDate,
		End:        r.EndDate,
		Block:      schedule.TimeBlock(r.TimeBlock),
		LeaveType:  r.LeaveType,
		Reason:     r.Reason,
		Actor:      r.Actor,
	}
}

// StepErrorDTO reports one failed saga step.
type StepErrorDTO struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

func toStepErrorDTOs(errs []schedule.StepError) []StepErrorDTO {
	out := make([]StepErrorDTO, len(errs))
	for i, e := range errs {
		out[i] = StepErrorDTO{Step: e.Step, Message: e.Message}
	}
	return out
}

// CreatePTOResultDTO reports what the PTO creation saga accomplished.
type CreatePTOResultDTO struct {
	DaysCreated int            `json:"days_created"`
	DaysSkipped int            `json:"days_skipped"`
	DaysCharged string         `json:"days_charged"`
	RequestID   string         `json:"request_id,omitempty"`
	LeaveID     string         `json:"leave_id,omitempty"`
	StepErrors  []StepErrorDTO `json:"step_errors,omitempty"`
}

func toCreatePTOResultDTO(r schedule.CreatePTOResult) CreatePTOResultDTO {
	return CreatePTOResultDTO{
		DaysCreated: r.DaysCreated,
		DaysSkipped: r.DaysSkipped,
		DaysCharged: r.DaysCharged.String(),
		RequestID:   string(r.RequestID),
		LeaveID:     string(r.LeaveID),
		StepErrors:  toStepErrorDTOs(r.StepErrors),
	}
}

// PTORequestDTO represents one review-workflow record.
type PTORequestDTO struct {
	ID         string        `json:"id"`
	ProviderID string        `json:"provider_id"`
	StartDate  schedule.Date `json:"start_date"`
	EndDate    schedule.Date `json:"end_date"`
	LeaveType  string        `json:"leave_type"`
	TimeBlock  string        `json:"time_block"`
	Status     string        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ReviewedBy string        `json:"reviewed_by,omitempty"`
	ReviewedAt string        `json:"reviewed_at,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
}

func toPTORequestDTO(r schedule.PTORequest) PTORequestDTO {
	dto := PTORequestDTO{
		ID:         string(r.ID),
		ProviderID: string(r.ProviderID),
		StartDate:  r.Start,
		EndDate:    r.End,
		LeaveType:  r.LeaveType,
		TimeBlock:  string(r.Block),
		Status:     string(r.Status),
		Reason:     r.Reason,
		ReviewedBy: r.ReviewedBy,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
	if r.ReviewedAt != nil {
		dto.ReviewedAt = r.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

// LeaveDTO represents one denormalized leave span.
type LeaveDTO struct {
	ID         string        `json:"id"`
	ProviderID string        `json:"provider_id"`
	StartDate  schedule.Date `json:"start_date"`
	EndDate    schedule.Date `json:"end_date"`
	LeaveType  string        `json:"leave_type"`
	Reason     string        `json:"reason,omitempty"`
}

// ReviewRequest carries reviewer identity for approve/deny.
type ReviewRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason,omitempty"`
}

// CascadeDeleteRequest identifies the PTO day to remove.
type CascadeDeleteRequest struct {
	ProviderID string        `json:"provider_id"`
	Date       schedule.Date `json:"date"`
}

// RangeGapDTO reports a satellite record the cascade could not shrink.
type RangeGapDTO struct {
	Kind      string        `json:"kind"`
	ID        string        `json:"id"`
	StartDate schedule.Date `json:"start_date"`
	EndDate   schedule.Date `json:"end_date"`
	Date      schedule.Date `json:"date"`
}

// CascadeResultDTO reports what the cascade delete accomplished.
type CascadeResultDTO struct {
	AssignmentsDeleted int            `json:"assignments_deleted"`
	RequestsDeleted    int            `json:"requests_deleted"`
	RequestsTrimmed    int            `json:"requests_trimmed"`
	LeavesDeleted      int            `json:"leaves_deleted"`
	LeavesTrimmed      int            `json:"leaves_trimmed"`
	RangeGaps          []RangeGapDTO  `json:"range_gaps,omitempty"`
	StepErrors         []StepErrorDTO `json:"step_errors,omitempty"`
}

// DiscrepancyDTO reports leave workdays with no backing PTO assignment.
type DiscrepancyDTO struct {
	LeaveID   string          `json:"leave_id"`
	StartDate schedule.Date   `json:"start_date"`
	EndDate   schedule.Date   `json:"end_date"`
	Missing   []schedule.Date `json:"missing"`
}

// =============================================================================
// TEMPLATES
// =============================================================================

// ApplyTemplateRequest expands a template over a date range.
type ApplyTemplateRequest struct {
	StartDate     schedule.Date `json:"start_date"`
	EndDate       schedule.Date `json:"end_date"`
	FillEmptyOnly bool          `json:"fill_empty_only,omitempty"`
}

// HolidayConflictDTO reports a template row suppressed by a holiday.
type HolidayConflictDTO struct {
	Date        schedule.Date `json:"date"`
	HolidayName string        `json:"holiday_name"`
	ProviderID  string        `json:"provider_id"`
	ServiceID   string        `json:"service_id"`
	TimeBlock   string        `json:"time_block"`
}

// ApplyResultDTO reports what the template expansion accomplished.
type ApplyResultDTO struct {
	Created          int                  `json:"created"`
	Skipped          int                  `json:"skipped"`
	Errors           int                  `json:"errors"`
	HolidayConflicts []HolidayConflictDTO `json:"holiday_conflicts,omitempty"`
}

// =============================================================================
// CHANGE HISTORY
// =============================================================================

// ChangeRecordDTO summarizes one undoable bulk mutation.
type ChangeRecordDTO struct {
	ID           string `json:"id"`
	Actor        string `json:"actor,omitempty"`
	DeletedCount int    `json:"deleted_count"`
	CreatedCount int    `json:"created_count"`
	State        string `json:"state"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toChangeRecordDTO(r schedule.ChangeRecord) ChangeRecordDTO {
	return ChangeRecordDTO{
		ID:           string(r.ID),
		Actor:        r.Actor,
		DeletedCount: len(r.Deleted),
		CreatedCount: len(r.CreatedIDs),
		State:        string(r.State),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}

// UndoResultDTO and RedoResultDTO report what each inversion did.
type UndoResultDTO struct {
	Success       bool   `json:"success"`
	DeletedCount  int    `json:"deleted_count"`
	RestoredCount int    `json:"restored_count"`
	Message       string `json:"message"`
}

type RedoResultDTO struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	CreatedCount int    `json:"created_count"`
	Message      string `json:"message"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// HolidayDTO represents one holiday.
type HolidayDTO struct {
	ID               string        `json:"id"`
	Date             schedule.Date `json:"date"`
	Name             string        `json:"name"`
	BlockAssignments bool          `json:"block_assignments"`
}

// RuleDTO represents one availability rule.
type RuleDTO struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	DayOfWeek   int    `json:"day_of_week"`
	TimeBlock   string `json:"time_block"`
	RuleType    string `json:"rule_type"`
	Enforcement string `json:"enforcement"`
	Reason      string `json:"reason,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
