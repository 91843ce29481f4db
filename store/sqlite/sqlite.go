/*
Package sqlite provides a SQLite-backed implementation of the schedule
persistence interfaces.

PURPOSE:
  Implements every store the engine consumes (assignments, PTO requests,
  leaves, templates, change history, rules, holidays, services, providers)
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  assignments:          Live calendar rows (source of truth)
  pto_requests:         Review workflow records
  provider_leaves:      Denormalized approved-leave spans
  templates:            Recurring patterns + template_assignments rows
  change_history:       Undo/redo snapshots (JSON payloads)
  availability_rules:   Static allow/block configuration
  holidays, services, providers: Reference data

CONSTRAINT SIGNALING:
  idx_unique_slot enforces at most one row per
  (provider_id, date, time_block, service_id). Violations surface as
  schedule.ErrDuplicateAssignment so batch callers can count skips; the
  constraint is the final arbiter under concurrent submissions.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block and crash recovery is cleaner.

USAGE:
  st, err := sqlite.New("./data/schedule.db")   // ":memory:" for tests
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian/schedule-engine/schedule"
)

// Store implements all schedule persistence interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		time_block TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		room_count INTEGER DEFAULT 0,
		is_pto BOOLEAN DEFAULT FALSE,
		is_covering BOOLEAN DEFAULT FALSE,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- The final arbiter under concurrent submissions.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_slot
		ON assignments(provider_id, date, time_block, service_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_provider_date
		ON assignments(provider_id, date);
	CREATE INDEX IF NOT EXISTS idx_assignments_date
		ON assignments(date);

	CREATE TABLE IF NOT EXISTS pto_requests (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		time_block TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON pto_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_range
		ON pto_requests(provider_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS provider_leaves (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_range
		ON provider_leaves(provider_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT
	);

	CREATE TABLE IF NOT EXISTS template_assignments (
		template_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		provider_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		time_block TEXT NOT NULL,
		room_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_template_rows
		ON template_assignments(template_id);

	CREATE TABLE IF NOT EXISTS change_history (
		id TEXT PRIMARY KEY,
		actor TEXT,
		deleted_json TEXT NOT NULL,
		redo_json TEXT NOT NULL,
		created_ids_json TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS availability_rules (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		time_block TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		enforcement TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rules_provider
		ON availability_rules(provider_id);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		block_assignments BOOLEAN DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		inpatient BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		workdays_json TEXT
	);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// ASSIGNMENT STORE (schedule.AssignmentStore)
// =============================================================================

func (s *Store) CreateAssignment(ctx context.Context, a schedule.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAssignment(ctx, s.db, a)
}

func (s *Store) CreateAssignments(ctx context.Context, as []schedule.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, a := range as {
		if err := insertAssignment(ctx, sqlTx, a); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAssignment(ctx context.Context, db execer, a schedule.Assignment) error {
	query := `
		INSERT INTO assignments
		(id, date, time_block, provider_id, service_id, room_count, is_pto, is_covering, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.Date.String(),
		a.Block,
		a.ProviderID,
		a.ServiceID,
		a.RoomCount,
		a.IsPTO,
		a.IsCovering,
		nullString(a.Notes),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return schedule.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

const assignmentSelect = `
	SELECT id, date, time_block, provider_id, service_id, room_count, is_pto, is_covering, notes, created_at
	FROM assignments`

func (s *Store) GetAssignment(ctx context.Context, id schedule.AssignmentID) (schedule.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := scanAssignment(s.db.QueryRowContext(ctx, assignmentSelect+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return schedule.Assignment{}, schedule.ErrAssignmentNotFound
	}
	return a, err
}

func (s *Store) DeleteAssignment(ctx context.Context, id schedule.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrAssignmentNotFound
	}
	return nil
}

func (s *Store) DeleteAssignments(ctx context.Context, ids []schedule.AssignmentID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM assignments WHERE id IN ("+strings.Join(placeholders, ",")+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) ListAssignments(ctx context.Context, f schedule.AssignmentFilter) ([]schedule.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		clauses []string
		args    []any
	)
	if f.ProviderID != "" {
		clauses = append(clauses, "provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if len(f.Providers) > 0 {
		ph := make([]string, len(f.Providers))
		for i, p := range f.Providers {
			ph[i] = "?"
			args = append(args, p)
		}
		clauses = append(clauses, "provider_id IN ("+strings.Join(ph, ",")+")")
	}
	if len(f.Dates) > 0 {
		ph := make([]string, len(f.Dates))
		for i, d := range f.Dates {
			ph[i] = "?"
			args = append(args, d.String())
		}
		clauses = append(clauses, "date IN ("+strings.Join(ph, ",")+")")
	}
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.PTOOnly {
		clauses = append(clauses, "is_pto = TRUE")
	}
	if f.OverlapsBlock != nil && *f.OverlapsBlock != schedule.BlockBoth {
		// A BOTH filter matches everything, so no clause is needed for it.
		clauses = append(clauses, "time_block IN (?, ?)")
		args = append(args, *f.OverlapsBlock, schedule.BlockBoth)
	}

	query := assignmentSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []schedule.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAssignment(row scannable) (schedule.Assignment, error) {
	var (
		a         schedule.Assignment
		date      string
		notes     sql.NullString
		createdAt string
	)
	err := row.Scan(&a.ID, &date, &a.Block, &a.ProviderID, &a.ServiceID,
		&a.RoomCount, &a.IsPTO, &a.IsCovering, &notes, &createdAt)
	if err != nil {
		return a, err
	}
	if a.Date, err = schedule.ParseDate(date); err != nil {
		return a, fmt.Errorf("failed to scan assignment date: %w", err)
	}
	a.Notes = notes.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

// =============================================================================
// PTO STORE (schedule.PTOStore)
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r schedule.PTORequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO pto_requests
		(id, provider_id, start_date, end_date, leave_type, time_block, status, reason, reviewed_by, reviewed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ProviderID, r.Start.String(), r.End.String(), r.LeaveType,
		r.Block, r.Status, nullString(r.Reason), nullString(r.ReviewedBy),
		nullTime(r.ReviewedAt), r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pto request: %w", err)
	}
	return nil
}

const requestSelect = `
	SELECT id, provider_id, start_date, end_date, leave_type, time_block, status, reason, reviewed_by, reviewed_at, created_at
	FROM pto_requests`

func (s *Store) GetRequest(ctx context.Context, id schedule.RequestID) (schedule.PTORequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRequest(s.db.QueryRowContext(ctx, requestSelect+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return schedule.PTORequest{}, schedule.ErrRequestNotFound
	}
	return r, err
}

func (s *Store) UpdateRequest(ctx context.Context, r schedule.PTORequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE pto_requests
		SET start_date = ?, end_date = ?, status = ?, reason = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		r.Start.String(), r.End.String(), r.Status, nullString(r.Reason),
		nullString(r.ReviewedBy), nullTime(r.ReviewedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pto request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrRequestNotFound
	}
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id schedule.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM pto_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pto request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrRequestNotFound
	}
	return nil
}

func (s *Store) RequestsContaining(ctx context.Context, providerID schedule.ProviderID, d schedule.Date) ([]schedule.PTORequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := requestSelect + " WHERE provider_id = ? AND start_date <= ? AND end_date >= ?"
	return s.queryRequests(ctx, query, providerID, d.String(), d.String())
}

func (s *Store) ListRequests(ctx context.Context, providerID schedule.ProviderID, status schedule.RequestStatus) ([]schedule.PTORequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := requestSelect + " WHERE 1=1"
	var args []any
	if providerID != "" {
		query += " AND provider_id = ?"
		args = append(args, providerID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC, id ASC"
	return s.queryRequests(ctx, query, args...)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]schedule.PTORequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pto requests: %w", err)
	}
	defer rows.Close()

	var out []schedule.PTORequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row scannable) (schedule.PTORequest, error) {
	var (
		r          schedule.PTORequest
		start, end string
		reason     sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(&r.ID, &r.ProviderID, &start, &end, &r.LeaveType,
		&r.Block, &r.Status, &reason, &reviewedBy, &reviewedAt, &createdAt)
	if err != nil {
		return r, err
	}
	if r.Start, err = schedule.ParseDate(start); err != nil {
		return r, err
	}
	if r.End, err = schedule.ParseDate(end); err != nil {
		return r, err
	}
	r.Reason = reason.String
	r.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		if t, err := time.Parse(time.RFC3339, reviewedAt.String); err == nil {
			r.ReviewedAt = &t
		}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return r, nil
}

func (s *Store) CreateLeave(ctx context.Context, l schedule.ProviderLeave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO provider_leaves (id, provider_id, start_date, end_date, leave_type, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.ProviderID, l.Start.String(), l.End.String(), l.LeaveType, nullString(l.Reason))
	if err != nil {
		return fmt.Errorf("failed to insert provider leave: %w", err)
	}
	return nil
}

func (s *Store) DeleteLeave(ctx context.Context, id schedule.LeaveID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM provider_leaves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrLeaveNotFound
	}
	return nil
}

func (s *Store) UpdateLeaveRange(ctx context.Context, id schedule.LeaveID, r schedule.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE provider_leaves SET start_date = ?, end_date = ? WHERE id = ?",
		r.Start.String(), r.End.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update leave range: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrLeaveNotFound
	}
	return nil
}

const leaveSelect = `
	SELECT id, provider_id, start_date, end_date, leave_type, reason
	FROM provider_leaves`

func (s *Store) LeavesContaining(ctx context.Context, providerID schedule.ProviderID, d schedule.Date) ([]schedule.ProviderLeave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := leaveSelect + " WHERE provider_id = ? AND start_date <= ? AND end_date >= ?"
	return s.queryLeaves(ctx, query, providerID, d.String(), d.String())
}

func (s *Store) ListLeaves(ctx context.Context, providerID schedule.ProviderID) ([]schedule.ProviderLeave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if providerID == "" {
		return s.queryLeaves(ctx, leaveSelect+" ORDER BY start_date ASC, id ASC")
	}
	return s.queryLeaves(ctx, leaveSelect+" WHERE provider_id = ? ORDER BY start_date ASC, id ASC", providerID)
}

func (s *Store) queryLeaves(ctx context.Context, query string, args ...any) ([]schedule.ProviderLeave, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider leaves: %w", err)
	}
	defer rows.Close()

	var out []schedule.ProviderLeave
	for rows.Next() {
		var (
			l          schedule.ProviderLeave
			start, end string
			reason     sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.ProviderID, &start, &end, &l.LeaveType, &reason); err != nil {
			return nil, err
		}
		if l.Start, err = schedule.ParseDate(start); err != nil {
			return nil, err
		}
		if l.End, err = schedule.ParseDate(end); err != nil {
			return nil, err
		}
		l.Reason = reason.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// TEMPLATE STORE (schedule.TemplateStore)
// =============================================================================

func (s *Store) GetTemplate(ctx context.Context, id schedule.TemplateID) (schedule.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t schedule.Template
	var typ sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, type FROM templates WHERE id = ?", id).Scan(&t.ID, &t.Name, &typ)
	if err == sql.ErrNoRows {
		return t, schedule.ErrTemplateNotFound
	}
	if err != nil {
		return t, fmt.Errorf("failed to get template: %w", err)
	}
	t.Type = typ.String
	return t, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t schedule.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO templates (id, name, type) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type
	`
	if _, err := s.db.ExecContext(ctx, query, t.ID, t.Name, nullString(t.Type)); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

func (s *Store) ReplaceTemplateAssignments(ctx context.Context, id schedule.TemplateID, assignments []schedule.TemplateAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM templates WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return schedule.ErrTemplateNotFound
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM template_assignments WHERE template_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear template rows: %w", err)
	}
	for _, r := range assignments {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO template_assignments (template_id, day_of_week, provider_id, service_id, time_block, room_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, int(r.DayOfWeek), r.ProviderID, r.ServiceID, r.Block, r.RoomCount)
		if err != nil {
			return fmt.Errorf("failed to insert template row: %w", err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) ListTemplateAssignments(ctx context.Context, id schedule.TemplateID) ([]schedule.TemplateAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT template_id, day_of_week, provider_id, service_id, time_block, room_count
		FROM template_assignments WHERE template_id = ? ORDER BY day_of_week ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query template rows: %w", err)
	}
	defer rows.Close()

	var out []schedule.TemplateAssignment
	for rows.Next() {
		var (
			r   schedule.TemplateAssignment
			dow int
		)
		if err := rows.Scan(&r.TemplateID, &dow, &r.ProviderID, &r.ServiceID, &r.Block, &r.RoomCount); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(dow)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HISTORY STORE (schedule.HistoryStore)
// =============================================================================

func (s *Store) AppendRecord(ctx context.Context, r schedule.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deletedJSON, _ := json.Marshal(r.Deleted)
	redoJSON, _ := json.Marshal(r.Redo)
	idsJSON, _ := json.Marshal(r.CreatedIDs)

	query := `
		INSERT INTO change_history (id, actor, deleted_json, redo_json, created_ids_json, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, nullString(r.Actor), string(deletedJSON), string(redoJSON), string(idsJSON),
		r.State, r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append change record: %w", err)
	}
	return nil
}

const recordSelect = `
	SELECT id, actor, deleted_json, redo_json, created_ids_json, state, created_at, updated_at
	FROM change_history`

func (s *Store) GetRecord(ctx context.Context, id schedule.RecordID) (schedule.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRecord(s.db.QueryRowContext(ctx, recordSelect+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return schedule.ChangeRecord{}, schedule.ErrRecordNotFound
	}
	return r, err
}

func (s *Store) UpdateRecord(ctx context.Context, r schedule.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idsJSON, _ := json.Marshal(r.CreatedIDs)
	res, err := s.db.ExecContext(ctx,
		"UPDATE change_history SET state = ?, created_ids_json = ?, updated_at = ? WHERE id = ?",
		r.State, string(idsJSON), r.UpdatedAt.UTC().Format(time.RFC3339), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update change record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, limit int) ([]schedule.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := recordSelect + " ORDER BY created_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query change records: %w", err)
	}
	defer rows.Close()

	var out []schedule.ChangeRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row scannable) (schedule.ChangeRecord, error) {
	var (
		r                              schedule.ChangeRecord
		actor                          sql.NullString
		deletedJSON, redoJSON, idsJSON string
		createdAt, updatedAt           string
	)
	err := row.Scan(&r.ID, &actor, &deletedJSON, &redoJSON, &idsJSON, &r.State, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.Actor = actor.String
	if err := json.Unmarshal([]byte(deletedJSON), &r.Deleted); err != nil {
		return r, fmt.Errorf("failed to decode deleted snapshots: %w", err)
	}
	if err := json.Unmarshal([]byte(redoJSON), &r.Redo); err != nil {
		return r, fmt.Errorf("failed to decode redo snapshots: %w", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &r.CreatedIDs); err != nil {
		return r, fmt.Errorf("failed to decode created ids: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return r, nil
}

// =============================================================================
// RULE STORE (schedule.RuleStore)
// =============================================================================

func (s *Store) RulesFor(ctx context.Context, providerID schedule.ProviderID) ([]schedule.AvailabilityRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, service_id, day_of_week, time_block, rule_type, enforcement, reason
		FROM availability_rules WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []schedule.AvailabilityRule
	for rows.Next() {
		var (
			r      schedule.AvailabilityRule
			dow    int
			reason sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ProviderID, &r.ServiceID, &dow, &r.Block, &r.Type, &r.Enforcement, &reason); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(dow)
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRule(ctx context.Context, r schedule.AvailabilityRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availability_rules (id, provider_id, service_id, day_of_week, time_block, rule_type, enforcement, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProviderID, r.ServiceID, int(r.DayOfWeek), r.Block, r.Type, r.Enforcement, nullString(r.Reason))
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// =============================================================================
// HOLIDAY STORE (schedule.HolidayStore)
// =============================================================================

func (s *Store) ListHolidays(ctx context.Context) ([]schedule.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, date, name, block_assignments FROM holidays ORDER BY date ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []schedule.Holiday
	for rows.Next() {
		var (
			h    schedule.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.BlockAssignments); err != nil {
			return nil, err
		}
		if h.Date, err = schedule.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) SaveHoliday(ctx context.Context, h schedule.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO holidays (id, date, name, block_assignments) VALUES (?, ?, ?, ?)",
		h.ID, h.Date.String(), h.Name, h.BlockAssignments)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil // same holiday already loaded
		}
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// =============================================================================
// SERVICE CATALOG / PROVIDER DIRECTORY
// =============================================================================

func (s *Store) ServiceByID(ctx context.Context, id schedule.ServiceID) (schedule.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var svc schedule.Service
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, inpatient FROM services WHERE id = ?", id).Scan(&svc.ID, &svc.Name, &svc.Inpatient)
	if err == sql.ErrNoRows {
		return svc, schedule.ErrServiceNotFound
	}
	return svc, err
}

func (s *Store) ServiceByName(ctx context.Context, name string) (schedule.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var svc schedule.Service
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, inpatient FROM services WHERE name = ?", name).Scan(&svc.ID, &svc.Name, &svc.Inpatient)
	if err == sql.ErrNoRows {
		return svc, schedule.ErrServiceNotFound
	}
	return svc, err
}

func (s *Store) SaveService(ctx context.Context, svc schedule.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO services (id, name, inpatient) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, inpatient = excluded.inpatient
	`
	if _, err := s.db.ExecContext(ctx, query, svc.ID, svc.Name, svc.Inpatient); err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, id schedule.ProviderID) (schedule.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProviderLocked(ctx, id)
}

func (s *Store) getProviderLocked(ctx context.Context, id schedule.ProviderID) (schedule.Provider, error) {
	var (
		p            schedule.Provider
		workdaysJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, workdays_json FROM providers WHERE id = ?", id).Scan(&p.ID, &p.Name, &workdaysJSON)
	if err == sql.ErrNoRows {
		return p, schedule.ErrProviderNotFound
	}
	if err != nil {
		return p, err
	}
	if workdaysJSON.Valid && workdaysJSON.String != "" {
		var days []int
		if err := json.Unmarshal([]byte(workdaysJSON.String), &days); err != nil {
			return p, fmt.Errorf("failed to decode workdays: %w", err)
		}
		for _, d := range days {
			p.Workdays = append(p.Workdays, time.Weekday(d))
		}
	}
	return p, nil
}

func (s *Store) Workdays(ctx context.Context, id schedule.ProviderID) ([]time.Weekday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.getProviderLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(p.Workdays) == 0 {
		return schedule.DefaultWorkdays, nil
	}
	return p.Workdays, nil
}

func (s *Store) SaveProvider(ctx context.Context, p schedule.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := make([]int, len(p.Workdays))
	for i, d := range p.Workdays {
		days[i] = int(d)
	}
	workdaysJSON, _ := json.Marshal(days)

	query := `
		INSERT INTO providers (id, name, workdays_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, workdays_json = excluded.workdays_json
	`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, string(workdaysJSON)); err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
