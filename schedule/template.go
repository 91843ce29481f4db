/*
template.go - Expansion of day-of-week templates into dated assignments

PURPOSE:
  A template is a recurring weekly pattern (Monday AM: Dr. A on Clinic,
  ...). The Expander projects it onto an arbitrary date range, suppressing
  duplicates and holiday conflicts.

PER-ROW INSERTS:
  Insertion is deliberately per-row rather than one batch: a duplicate-key
  failure on one row must not abort the rest. Duplicates count as skipped,
  not as errors.

SEE ALSO:
  - holiday.go: Blocking-holiday and inpatient exemption policy
  - store.go: TemplateStore contract
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

// HolidayConflict reports a template row suppressed by a blocking holiday.
type HolidayConflict struct {
	Date        Date
	HolidayName string
	ProviderID  ProviderID
	ServiceID   ServiceID
	Block       TimeBlock
}

type ApplyResult struct {
	Created          int
	Skipped          int
	Errors           int
	HolidayConflicts []HolidayConflict
}

type Expander struct {
	Templates   TemplateStore
	Assignments AssignmentStore
	Catalog     ServiceCatalog
	Calendar    HolidayCalendar
	Inpatient   InpatientServices
	Logger      *zap.Logger
}

func NewExpander(templates TemplateStore, assignments AssignmentStore, catalog ServiceCatalog, calendar HolidayCalendar, inpatient InpatientServices, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calendar == nil {
		calendar = DefaultCalendar{}
	}
	return &Expander{
		Templates:   templates,
		Assignments: assignments,
		Catalog:     catalog,
		Calendar:    calendar,
		Inpatient:   inpatient,
		Logger:      logger,
	}
}

// Apply expands the template over [start, end]. With fillEmptyOnly, slots
// that already have a live assignment are left alone; otherwise existing
// rows surface as unique-constraint skips.
func (e *Expander) Apply(ctx context.Context, id TemplateID, start, end Date, fillEmptyOnly bool) (ApplyResult, error) {
	var result ApplyResult

	if end.Before(start) {
		return result, ErrInvalidDateRange
	}
	if _, err := e.Templates.GetTemplate(ctx, id); err != nil {
		return result, err
	}
	rows, err := e.Templates.ListTemplateAssignments(ctx, id)
	if err != nil {
		return result, fmt.Errorf("template rows: %w", err)
	}

	byWeekday := map[time.Weekday][]TemplateAssignment{}
	for _, r := range rows {
		byWeekday[r.DayOfWeek] = append(byWeekday[r.DayOfWeek], r)
	}

	span := DateRange{Start: start, End: end}
	var existing []Assignment
	if fillEmptyOnly {
		existing, err = e.Assignments.ListAssignments(ctx, AssignmentFilter{From: &start, To: &end})
		if err != nil {
			return result, fmt.Errorf("existing assignments: %w", err)
		}
	}

	for _, d := range span.Days() {
		for _, row := range byWeekday[d.Weekday()] {
			if conflict := e.holidayConflict(ctx, d, row); conflict != nil {
				result.HolidayConflicts = append(result.HolidayConflicts, *conflict)
				continue
			}
			if fillEmptyOnly && slotTaken(existing, d, row) {
				result.Skipped++
				continue
			}

			a := Assignment{
				ID:         AssignmentID(uuid.NewString()),
				Date:       d,
				Block:      row.Block,
				ProviderID: row.ProviderID,
				ServiceID:  row.ServiceID,
				RoomCount:  row.RoomCount,
				CreatedAt:  time.Now().UTC(),
			}
			switch err := e.Assignments.CreateAssignment(ctx, a); {
			case err == nil:
				result.Created++
			case errors.Is(err, ErrDuplicateAssignment):
				result.Skipped++
			default:
				result.Errors++
				e.Logger.Error("template apply: insert failed",
					zap.String("template_id", string(id)),
					zap.String("date", d.String()),
					zap.Error(err))
			}
		}
	}
	return result, nil
}

func (e *Expander) holidayConflict(ctx context.Context, d Date, row TemplateAssignment) *HolidayConflict {
	h := e.Calendar.Lookup(d)
	if h == nil || !h.BlockAssignments {
		return nil
	}
	svc, err := e.Catalog.ServiceByID(ctx, row.ServiceID)
	if err == nil && e.Inpatient.IsInpatient(svc.Name) {
		return nil
	}
	// Unknown services are treated as blocked, never silently scheduled.
	return &HolidayConflict{
		Date:        d,
		HolidayName: h.Name,
		ProviderID:  row.ProviderID,
		ServiceID:   row.ServiceID,
		Block:       row.Block,
	}
}

func slotTaken(existing []Assignment, d Date, row TemplateAssignment) bool {
	for _, a := range existing {
		if a.ProviderID == row.ProviderID && a.Date.Equal(d) && a.Block.Overlaps(row.Block) {
			return true
		}
	}
	return false
}
