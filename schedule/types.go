/*
Package schedule provides the clinical schedule consistency engine.

PURPOSE:
  This package contains the domain types and algorithms that decide whether
  a proposed set of calendar assignments may be committed, reconcile PTO
  state across its three denormalized stores, expand recurring templates
  into concrete dated assignments, and support undo/redo of bulk mutations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Assignment: One provider/service slot on one date (the live calendar)
  - TimeBlock: Half-day granularity (AM, PM, or BOTH)
  - AvailabilityRule: Static allow/block configuration per weekday
  - PTORequest / ProviderLeave: Satellite views of approved time off
  - Template / TemplateAssignment: Day-of-week recurring patterns
  - ChangeRecord: Snapshot of a bulk mutation for undo/redo

DESIGN PRINCIPLES:
  1. The assignments table is the source of truth for the live calendar;
     PTORequest and ProviderLeave are derived views kept consistent by the
     PTO Manager (the only multi-store writer).
  2. Type Safety: Strong typing for IDs prevents mixing provider/service IDs.
  3. Precision: decimal.Decimal for day accounting (half days are exact).

SEE ALSO:
  - calendar.go: Date arithmetic and workday expansion
  - conflict.go: Batch validation pipeline
  - pto.go: PTO lifecycle saga
  - history.go: Undo/redo ledger
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssignmentID string
type ProviderID string
type ServiceID string
type TemplateID string
type RequestID string
type LeaveID string
type RecordID string

// =============================================================================
// TIME BLOCK - Half-day granularity unit
// =============================================================================

type TimeBlock string

const (
	BlockAM   TimeBlock = "AM"
	BlockPM   TimeBlock = "PM"
	BlockBoth TimeBlock = "BOTH" // full day
)

// Overlaps reports whether two blocks occupy any common half-day.
// BOTH intersects everything; AM and PM are disjoint.
func (b TimeBlock) Overlaps(o TimeBlock) bool {
	return b == o || b == BlockBoth || o == BlockBoth
}

// Valid reports whether b is one of the three known blocks.
func (b TimeBlock) Valid() bool {
	return b == BlockAM || b == BlockPM || b == BlockBoth
}

// DayFraction returns the share of a day the block occupies.
func (b TimeBlock) DayFraction() decimal.Decimal {
	if b == BlockBoth {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(0.5)
}

// =============================================================================
// ASSIGNMENT - One calendar slot (source of truth)
// =============================================================================

type Assignment struct {
	ID         AssignmentID
	Date       Date
	Block      TimeBlock
	ProviderID ProviderID
	ServiceID  ServiceID
	RoomCount  int
	IsPTO      bool
	IsCovering bool
	Notes      string
	CreatedAt  time.Time
}

// =============================================================================
// AVAILABILITY RULES - Static configuration, evaluated but never mutated
// =============================================================================

type RuleType string

const (
	RuleAllow RuleType = "allow"
	RuleBlock RuleType = "block"
)

type Enforcement string

const (
	EnforceHard Enforcement = "hard"
	EnforceSoft Enforcement = "soft"
)

type AvailabilityRule struct {
	ID          string
	ProviderID  ProviderID
	ServiceID   ServiceID
	DayOfWeek   time.Weekday
	Block       TimeBlock
	Type        RuleType
	Enforcement Enforcement
	Reason      string
}

// =============================================================================
// HOLIDAY - Static reference data
// =============================================================================

type Holiday struct {
	ID               string
	Date             Date
	Name             string
	BlockAssignments bool
}

// =============================================================================
// PTO REQUEST / PROVIDER LEAVE - Satellite views of time off
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

type PTORequest struct {
	ID         RequestID
	ProviderID ProviderID
	Start      Date
	End        Date
	LeaveType  string
	Block      TimeBlock
	Status     RequestStatus
	Reason     string
	ReviewedBy string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// ProviderLeave is the denormalized materialization of an approved request,
// consumed by availability checks and reporting. It spans the full range
// rather than being expanded to per-day rows.
type ProviderLeave struct {
	ID         LeaveID
	ProviderID ProviderID
	Start      Date
	End        Date
	LeaveType  string
	Reason     string
}

// =============================================================================
// TEMPLATES - Day-of-week recurring patterns
// =============================================================================

type Template struct {
	ID   TemplateID
	Name string
	Type string
}

type TemplateAssignment struct {
	TemplateID TemplateID
	DayOfWeek  time.Weekday
	ProviderID ProviderID
	ServiceID  ServiceID
	Block      TimeBlock
	RoomCount  int
}

// =============================================================================
// SERVICE / PROVIDER - Catalog records resolved through collaborators
// =============================================================================

type Service struct {
	ID        ServiceID
	Name      string
	Inpatient bool // inpatient services are exempt from holiday blocking
}

type Provider struct {
	ID       ProviderID
	Name     string
	Workdays []time.Weekday // empty = default Mon-Fri
}

// DefaultWorkdays is the fallback when a provider has no configured workdays.
var DefaultWorkdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}
