// Package store provides in-memory implementations of the schedule
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meridian/schedule-engine/schedule"
)

// =============================================================================
// MEMORY STORE - Implements every persistence interface over maps
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	assignments map[schedule.AssignmentID]schedule.Assignment
	requests    map[schedule.RequestID]schedule.PTORequest
	leaves      map[schedule.LeaveID]schedule.ProviderLeave
	templates   map[schedule.TemplateID]schedule.Template
	templRows   map[schedule.TemplateID][]schedule.TemplateAssignment
	records     map[schedule.RecordID]schedule.ChangeRecord
	rules       map[schedule.ProviderID][]schedule.AvailabilityRule
	holidays    []schedule.Holiday
	services    map[schedule.ServiceID]schedule.Service
	providers   map[schedule.ProviderID]schedule.Provider
}

func NewMemory() *Memory {
	return &Memory{
		assignments: make(map[schedule.AssignmentID]schedule.Assignment),
		requests:    make(map[schedule.RequestID]schedule.PTORequest),
		leaves:      make(map[schedule.LeaveID]schedule.ProviderLeave),
		templates:   make(map[schedule.TemplateID]schedule.Template),
		templRows:   make(map[schedule.TemplateID][]schedule.TemplateAssignment),
		records:     make(map[schedule.RecordID]schedule.ChangeRecord),
		rules:       make(map[schedule.ProviderID][]schedule.AvailabilityRule),
		services:    make(map[schedule.ServiceID]schedule.Service),
		providers:   make(map[schedule.ProviderID]schedule.Provider),
	}
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (m *Memory) CreateAssignment(_ context.Context, a schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(a)
}

func (m *Memory) CreateAssignments(_ context.Context, as []schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check the whole batch first, including rows that collide with each
	// other: all rows or none.
	seen := make(map[slotKey]bool, len(as))
	for _, a := range as {
		k := slotOf(a)
		if seen[k] || m.conflictsLocked(a) {
			return schedule.ErrDuplicateAssignment
		}
		seen[k] = true
	}
	for _, a := range as {
		m.assignments[a.ID] = a
	}
	return nil
}

// slotKey mirrors the (provider, date, block, service) unique index.
type slotKey struct {
	provider schedule.ProviderID
	date     string
	block    schedule.TimeBlock
	service  schedule.ServiceID
}

func slotOf(a schedule.Assignment) slotKey {
	return slotKey{a.ProviderID, a.Date.String(), a.Block, a.ServiceID}
}

func (m *Memory) createLocked(a schedule.Assignment) error {
	if m.conflictsLocked(a) {
		return schedule.ErrDuplicateAssignment
	}
	m.assignments[a.ID] = a
	return nil
}

// conflictsLocked mirrors the (provider, date, block, service) unique index.
func (m *Memory) conflictsLocked(a schedule.Assignment) bool {
	for _, other := range m.assignments {
		if other.ProviderID == a.ProviderID &&
			other.Date.Equal(a.Date) &&
			other.Block == a.Block &&
			other.ServiceID == a.ServiceID {
			return true
		}
	}
	return false
}

func (m *Memory) GetAssignment(_ context.Context, id schedule.AssignmentID) (schedule.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}
	return a, nil
}

func (m *Memory) DeleteAssignment(_ context.Context, id schedule.AssignmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return schedule.ErrAssignmentNotFound
	}
	delete(m.assignments, id)
	return nil
}

func (m *Memory) DeleteAssignments(_ context.Context, ids []schedule.AssignmentID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := m.assignments[id]; ok {
			delete(m.assignments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) ListAssignments(_ context.Context, f schedule.AssignmentFilter) ([]schedule.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.Assignment
	for _, a := range m.assignments {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// PTO STORE
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r schedule.PTORequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id schedule.RequestID) (schedule.PTORequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return schedule.PTORequest{}, schedule.ErrRequestNotFound
	}
	return r, nil
}

func (m *Memory) UpdateRequest(_ context.Context, r schedule.PTORequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return schedule.ErrRequestNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) DeleteRequest(_ context.Context, id schedule.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return schedule.ErrRequestNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *Memory) RequestsContaining(_ context.Context, providerID schedule.ProviderID, d schedule.Date) ([]schedule.PTORequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.PTORequest
	for _, r := range m.requests {
		if r.ProviderID == providerID && (schedule.DateRange{Start: r.Start, End: r.End}).Contains(d) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListRequests(_ context.Context, providerID schedule.ProviderID, status schedule.RequestStatus) ([]schedule.PTORequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.PTORequest
	for _, r := range m.requests {
		if providerID != "" && r.ProviderID != providerID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateLeave(_ context.Context, l schedule.ProviderLeave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = l
	return nil
}

func (m *Memory) DeleteLeave(_ context.Context, id schedule.LeaveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaves[id]; !ok {
		return schedule.ErrLeaveNotFound
	}
	delete(m.leaves, id)
	return nil
}

func (m *Memory) UpdateLeaveRange(_ context.Context, id schedule.LeaveID, r schedule.DateRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leaves[id]
	if !ok {
		return schedule.ErrLeaveNotFound
	}
	l.Start, l.End = r.Start, r.End
	m.leaves[id] = l
	return nil
}

func (m *Memory) LeavesContaining(_ context.Context, providerID schedule.ProviderID, d schedule.Date) ([]schedule.ProviderLeave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ProviderLeave
	for _, l := range m.leaves {
		if l.ProviderID == providerID && (schedule.DateRange{Start: l.Start, End: l.End}).Contains(d) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) ListLeaves(_ context.Context, providerID schedule.ProviderID) ([]schedule.ProviderLeave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ProviderLeave
	for _, l := range m.leaves {
		if providerID == "" || l.ProviderID == providerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

func (m *Memory) GetTemplate(_ context.Context, id schedule.TemplateID) (schedule.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return schedule.Template{}, schedule.ErrTemplateNotFound
	}
	return t, nil
}

func (m *Memory) SaveTemplate(_ context.Context, t schedule.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *Memory) ReplaceTemplateAssignments(_ context.Context, id schedule.TemplateID, rows []schedule.TemplateAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return schedule.ErrTemplateNotFound
	}
	m.templRows[id] = append([]schedule.TemplateAssignment{}, rows...)
	return nil
}

func (m *Memory) ListTemplateAssignments(_ context.Context, id schedule.TemplateID) ([]schedule.TemplateAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schedule.TemplateAssignment{}, m.templRows[id]...), nil
}

// =============================================================================
// HISTORY STORE
// =============================================================================

func (m *Memory) AppendRecord(_ context.Context, r schedule.ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id schedule.RecordID) (schedule.ChangeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return schedule.ChangeRecord{}, schedule.ErrRecordNotFound
	}
	return r, nil
}

func (m *Memory) UpdateRecord(_ context.Context, r schedule.ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return schedule.ErrRecordNotFound
	}
	m.records[r.ID] = r
	return nil
}

func (m *Memory) ListRecords(_ context.Context, limit int) ([]schedule.ChangeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ChangeRecord
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// REFERENCE STORES AND CATALOGS
// =============================================================================

func (m *Memory) RulesFor(_ context.Context, providerID schedule.ProviderID) ([]schedule.AvailabilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schedule.AvailabilityRule{}, m.rules[providerID]...), nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schedule.Holiday{}, m.holidays...), nil
}

func (m *Memory) ServiceByID(_ context.Context, id schedule.ServiceID) (schedule.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return schedule.Service{}, schedule.ErrServiceNotFound
	}
	return s, nil
}

func (m *Memory) ServiceByName(_ context.Context, name string) (schedule.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.services {
		if s.Name == name {
			return s, nil
		}
	}
	return schedule.Service{}, schedule.ErrServiceNotFound
}

func (m *Memory) GetProvider(_ context.Context, id schedule.ProviderID) (schedule.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return schedule.Provider{}, schedule.ErrProviderNotFound
	}
	return p, nil
}

func (m *Memory) Workdays(_ context.Context, id schedule.ProviderID) ([]time.Weekday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, schedule.ErrProviderNotFound
	}
	if len(p.Workdays) == 0 {
		return schedule.DefaultWorkdays, nil
	}
	return append([]time.Weekday{}, p.Workdays...), nil
}

// =============================================================================
// SEEDING - For tests and dev fixtures
// =============================================================================

func (m *Memory) AddService(s schedule.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *Memory) AddProvider(p schedule.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *Memory) AddRule(r schedule.AvailabilityRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ProviderID] = append(m.rules[r.ProviderID], r)
}

func (m *Memory) AddHoliday(h schedule.Holiday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
}

func (m *Memory) AddTemplate(t schedule.Template, rows []schedule.TemplateAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	m.templRows[t.ID] = append([]schedule.TemplateAssignment{}, rows...)
}
