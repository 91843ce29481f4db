/*
store.go - Persistence boundary for the schedule engine

PURPOSE:
  Defines the interfaces between the engine and its collaborators. The
  surrounding application owns routing, sessions, and the database client;
  the engine only sees these narrow contracts.

KEY INTERFACES:
  AssignmentStore:   Live calendar rows (source of truth)
  PTOStore:          PTO requests and provider leaves (satellite views)
  TemplateStore:     Recurring templates and their day-of-week rows
  HistoryStore:      Change records for undo/redo
  RuleStore:         Read-only availability rules
  HolidayStore:      Read-only holiday reference data
  ServiceCatalog:    Service name/ID resolution + inpatient classification
  ProviderDirectory: Provider workday configuration
  Notifier:          Fire-and-forget email on PTO review

CONSTRAINT SIGNALING:
  CreateAssignment must return ErrDuplicateAssignment when an insert
  violates the (provider, date, block, service) unique constraint. The
  unique constraint is the final arbiter under concurrent submissions;
  batch operations translate it into a per-row skip.

ATOMICITY:
  CreateAssignments is all-or-nothing (used by validated batch commits).
  Everything else is an independent write; multi-store operations are
  sagas that tolerate partial completion (see pto.go).

IMPLEMENTATIONS:
  - schedule/store: in-memory, for tests and development
  - store/sqlite:   production SQLite
*/
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

// AssignmentFilter selects assignments by equality, range, and in-set
// predicates. Zero-value fields are ignored.
type AssignmentFilter struct {
	ProviderID ProviderID // equality
	Providers  []ProviderID
	Dates      []Date // in-set
	From, To   *Date  // inclusive range
	// OverlapsBlock keeps only rows whose block overlaps the given one
	// (a BOTH filter matches AM, PM, and BOTH).
	OverlapsBlock *TimeBlock
	PTOOnly       bool
}

func (f AssignmentFilter) Matches(a Assignment) bool {
	if f.ProviderID != "" && a.ProviderID != f.ProviderID {
		return false
	}
	if len(f.Providers) > 0 {
		found := false
		for _, p := range f.Providers {
			if a.ProviderID == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Dates) > 0 {
		found := false
		for _, d := range f.Dates {
			if a.Date.Equal(d) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	if f.OverlapsBlock != nil && !a.Block.Overlaps(*f.OverlapsBlock) {
		return false
	}
	if f.PTOOnly && !a.IsPTO {
		return false
	}
	return true
}

type AssignmentStore interface {
	// CreateAssignment inserts one row. Returns ErrDuplicateAssignment on
	// a (provider, date, block, service) unique-constraint violation.
	CreateAssignment(ctx context.Context, a Assignment) error

	// CreateAssignments inserts a batch atomically: all rows or none.
	CreateAssignments(ctx context.Context, as []Assignment) error

	GetAssignment(ctx context.Context, id AssignmentID) (Assignment, error)

	// DeleteAssignment removes one row. Missing rows are not an error for
	// DeleteAssignments; they are simply not counted.
	DeleteAssignment(ctx context.Context, id AssignmentID) error
	DeleteAssignments(ctx context.Context, ids []AssignmentID) (int, error)

	ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error)
}

// =============================================================================
// PTO STORE - Requests and leaves
// =============================================================================

type PTOStore interface {
	CreateRequest(ctx context.Context, r PTORequest) error
	GetRequest(ctx context.Context, id RequestID) (PTORequest, error)
	UpdateRequest(ctx context.Context, r PTORequest) error
	DeleteRequest(ctx context.Context, id RequestID) error

	// RequestsContaining returns the provider's requests whose
	// [Start, End] range contains the date.
	RequestsContaining(ctx context.Context, providerID ProviderID, d Date) ([]PTORequest, error)
	ListRequests(ctx context.Context, providerID ProviderID, status RequestStatus) ([]PTORequest, error)

	CreateLeave(ctx context.Context, l ProviderLeave) error
	DeleteLeave(ctx context.Context, id LeaveID) error

	// UpdateLeaveRange shrinks (or shifts) a leave's date range.
	UpdateLeaveRange(ctx context.Context, id LeaveID, r DateRange) error

	LeavesContaining(ctx context.Context, providerID ProviderID, d Date) ([]ProviderLeave, error)
	ListLeaves(ctx context.Context, providerID ProviderID) ([]ProviderLeave, error)
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

type TemplateStore interface {
	GetTemplate(ctx context.Context, id TemplateID) (Template, error)
	SaveTemplate(ctx context.Context, t Template) error

	// ReplaceTemplateAssignments swaps a template's rows wholesale.
	ReplaceTemplateAssignments(ctx context.Context, id TemplateID, rows []TemplateAssignment) error
	ListTemplateAssignments(ctx context.Context, id TemplateID) ([]TemplateAssignment, error)
}

// =============================================================================
// HISTORY STORE - Append-style change records
// =============================================================================

type HistoryStore interface {
	AppendRecord(ctx context.Context, r ChangeRecord) error
	GetRecord(ctx context.Context, id RecordID) (ChangeRecord, error)

	// UpdateRecord persists state transitions and replayed created IDs.
	// Snapshots themselves are immutable once appended.
	UpdateRecord(ctx context.Context, r ChangeRecord) error

	ListRecords(ctx context.Context, limit int) ([]ChangeRecord, error)
}

// =============================================================================
// READ-ONLY REFERENCE STORES
// =============================================================================

type RuleStore interface {
	// RulesFor returns all rules for a provider (all services, all days).
	RulesFor(ctx context.Context, providerID ProviderID) ([]AvailabilityRule, error)
}

type HolidayStore interface {
	ListHolidays(ctx context.Context) ([]Holiday, error)
}

// =============================================================================
// CATALOG COLLABORATORS
// =============================================================================

type ServiceCatalog interface {
	ServiceByID(ctx context.Context, id ServiceID) (Service, error)
	ServiceByName(ctx context.Context, name string) (Service, error)
}

type ProviderDirectory interface {
	GetProvider(ctx context.Context, id ProviderID) (Provider, error)

	// Workdays resolves a provider's configured workdays.
	// Unconfigured providers default to Mon-Fri.
	Workdays(ctx context.Context, id ProviderID) ([]time.Weekday, error)
}

// =============================================================================
// NOTIFIER - Fire-and-forget; failures never fail the enclosing operation
// =============================================================================

type Notifier interface {
	PTOApproved(ctx context.Context, r PTORequest) error
	PTODenied(ctx context.Context, r PTORequest) error
}

// NoopNotifier drops all notifications.
type NoopNotifier struct{}

func (NoopNotifier) PTOApproved(context.Context, PTORequest) error { return nil }
func (NoopNotifier) PTODenied(context.Context, PTORequest) error   { return nil }

// LogNotifier writes notifications to the log instead of sending email.
// Stands in for the mail collaborator in development.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) PTOApproved(_ context.Context, r PTORequest) error {
	n.Logger.Info("pto approved",
		zap.String("request_id", string(r.ID)),
		zap.String("provider_id", string(r.ProviderID)),
		zap.String("range", DateRange{Start: r.Start, End: r.End}.String()))
	return nil
}

func (n LogNotifier) PTODenied(_ context.Context, r PTORequest) error {
	n.Logger.Info("pto denied",
		zap.String("request_id", string(r.ID)),
		zap.String("provider_id", string(r.ProviderID)))
	return nil
}
