// Package sqlitestore is the embedded single-file backend for the appraisal
// workflow. It serves the CLI, local development and the test suites.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"appraisal/internal/domain/appraisal"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type Store struct {
	db *sql.DB
}

var _ appraisal.StoreAPI = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps transactions
	// and plain queries from deadlocking each other.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullIfEmpty(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullBytes(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func isUnique(err error, target string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, target)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appraisal.ErrNotFound
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const staffColumns = `id, name, email, role, designation, department, COALESCE(supervisor_id, ''), created_at`

func scanStaff(row scanner) (appraisal.Staff, error) {
	var out appraisal.Staff
	var created string
	if err := row.Scan(&out.ID, &out.Name, &out.Email, &out.Role, &out.Designation, &out.Department, &out.SupervisorID, &created); err != nil {
		return appraisal.Staff{}, err
	}
	var err error
	out.CreatedAt, err = parseTime(created)
	return out, err
}

func (s *Store) CreateStaff(ctx context.Context, staff appraisal.Staff) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO staff (id, name, email, role, designation, department, supervisor_id, created_at)
    VALUES (?,?,?,?,?,?,?,?)
  `, staff.ID, staff.Name, staff.Email, staff.Role, staff.Designation, staff.Department, nullIfEmpty(staff.SupervisorID), formatTime(staff.CreatedAt))
	if isUnique(err, "staff.") {
		return appraisal.ErrStaffExists
	}
	return err
}

func (s *Store) GetStaff(ctx context.Context, id string) (appraisal.Staff, error) {
	out, err := scanStaff(s.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id))
	return out, notFound(err)
}

func (s *Store) ListStaff(ctx context.Context, filter appraisal.StaffFilter) ([]appraisal.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE 1=1`
	var args []any
	if filter.Role != "" {
		query += " AND role = ?"
		args = append(args, filter.Role)
	}
	if filter.SupervisorID != "" {
		query += " AND supervisor_id = ?"
		args = append(args, filter.SupervisorID)
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []appraisal.Staff{}
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, staff)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStaff(ctx context.Context, staff appraisal.Staff) error {
	res, err := s.db.ExecContext(ctx, `
    UPDATE staff SET name = ?, email = ?, role = ?, designation = ?, department = ?, supervisor_id = ?
    WHERE id = ?
  `, staff.Name, staff.Email, staff.Role, staff.Designation, staff.Department, nullIfEmpty(staff.SupervisorID), staff.ID)
	if isUnique(err, "staff.") {
		return appraisal.ErrStaffExists
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var supervising int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM appraisals WHERE supervisor_id = ? AND staff_id <> ?`, id, id).Scan(&supervising); err != nil {
		return err
	}
	if supervising > 0 {
		return appraisal.ErrStaffInUse
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM appraisals WHERE staff_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE staff SET supervisor_id = NULL WHERE supervisor_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM staff WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return tx.Commit()
}

const periodColumns = `id, year, quarter, label, is_active, created_at`

func scanPeriod(row scanner) (appraisal.Period, error) {
	var out appraisal.Period
	var created string
	if err := row.Scan(&out.ID, &out.Year, &out.Quarter, &out.Label, &out.IsActive, &created); err != nil {
		return appraisal.Period{}, err
	}
	var err error
	out.CreatedAt, err = parseTime(created)
	return out, err
}

func (s *Store) CreatePeriod(ctx context.Context, period appraisal.Period) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO periods (id, year, quarter, label, is_active, created_at)
    VALUES (?,?,?,?,0,?)
  `, period.ID, period.Year, period.Quarter, period.Label, formatTime(period.CreatedAt))
	if isUnique(err, "periods.") {
		return appraisal.ErrPeriodExists
	}
	return err
}

func (s *Store) GetPeriod(ctx context.Context, id string) (appraisal.Period, error) {
	out, err := scanPeriod(s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = ?`, id))
	return out, notFound(err)
}

func (s *Store) ActivePeriod(ctx context.Context) (appraisal.Period, error) {
	out, err := scanPeriod(s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE is_active = 1 LIMIT 1`))
	return out, notFound(err)
}

func (s *Store) ListPeriods(ctx context.Context, year int) ([]appraisal.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods`
	var args []any
	if year > 0 {
		query += " WHERE year = ?"
		args = append(args, year)
	}
	query += " ORDER BY year DESC, quarter DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []appraisal.Period{}
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, rows.Err()
}

func (s *Store) ActivatePeriod(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE periods SET is_active = 0 WHERE is_active = 1 AND id <> ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE periods SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) UpdatePeriodLabel(ctx context.Context, id, label string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE periods SET label = ? WHERE id = ?`, label, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePeriod(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var inUse int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM appraisals WHERE period_id = ?`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return appraisal.ErrPeriodInUse
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM periods WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return tx.Commit()
}

const appraisalColumns = `id, staff_id, supervisor_id, period_id, period_label, status,
    content, scores, attachment, submitted_at, completed_at, created_at, updated_at`

func scanAppraisal(row scanner) (appraisal.Appraisal, error) {
	var out appraisal.Appraisal
	var status, created, updated string
	var submitted, completed sql.NullString
	var docs appraisal.Documents
	err := row.Scan(
		&out.ID, &out.StaffID, &out.SupervisorID, &out.PeriodID, &out.PeriodLabel, &status,
		&docs.Content, &docs.Scores, &docs.Attachment,
		&submitted, &completed, &created, &updated,
	)
	if err != nil {
		return appraisal.Appraisal{}, err
	}
	out.Status = appraisal.Status(status)
	if out.SubmittedAt, err = parseTimePtr(submitted); err != nil {
		return appraisal.Appraisal{}, err
	}
	if out.CompletedAt, err = parseTimePtr(completed); err != nil {
		return appraisal.Appraisal{}, err
	}
	if out.CreatedAt, err = parseTime(created); err != nil {
		return appraisal.Appraisal{}, err
	}
	if out.UpdatedAt, err = parseTime(updated); err != nil {
		return appraisal.Appraisal{}, err
	}
	if err := appraisal.DecodeDocuments(&out, docs); err != nil {
		return appraisal.Appraisal{}, err
	}
	return out, nil
}

func (s *Store) CreateAppraisal(ctx context.Context, a appraisal.Appraisal) error {
	docs, err := appraisal.EncodeDocuments(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
    INSERT INTO appraisals (id, staff_id, supervisor_id, period_id, period_label, status,
      content, scores, attachment, submitted_at, completed_at, created_at, updated_at)
    VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
  `, a.ID, a.StaffID, a.SupervisorID, a.PeriodID, a.PeriodLabel, string(a.Status),
		string(docs.Content), nullBytes(docs.Scores), nullBytes(docs.Attachment),
		formatTimePtr(a.SubmittedAt), formatTimePtr(a.CompletedAt), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if isUnique(err, "appraisals.") {
		return appraisal.ErrDuplicateAppraisal
	}
	return err
}

func (s *Store) LoadAppraisal(ctx context.Context, id string) (appraisal.Appraisal, error) {
	out, err := scanAppraisal(s.db.QueryRowContext(ctx, `SELECT `+appraisalColumns+` FROM appraisals WHERE id = ?`, id))
	return out, notFound(err)
}

func (s *Store) ListAppraisals(ctx context.Context, filter appraisal.AppraisalFilter) ([]appraisal.Appraisal, error) {
	var conditions []string
	var args []any
	if filter.StaffID != "" {
		conditions = append(conditions, "staff_id = ?")
		args = append(args, filter.StaffID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, "supervisor_id = ?")
		args = append(args, filter.SupervisorID)
	}
	if filter.PeriodID != "" {
		conditions = append(conditions, "period_id = ?")
		args = append(args, filter.PeriodID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ExcludeDrafts {
		conditions = append(conditions, "status <> ?")
		args = append(args, string(appraisal.StatusDraft))
	}

	query := `SELECT ` + appraisalColumns + ` FROM appraisals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	return s.queryAppraisals(ctx, query, args...)
}

func (s *Store) queryAppraisals(ctx context.Context, query string, args ...any) ([]appraisal.Appraisal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []appraisal.Appraisal{}
	for rows.Next() {
		a, err := scanAppraisal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const updateAppraisalSQL = `
    UPDATE appraisals
    SET status = ?, content = ?, scores = ?, submitted_at = ?, completed_at = ?, updated_at = ?
    WHERE id = ? AND status = ?
  `

func updateArgs(a appraisal.Appraisal, docs appraisal.Documents, expected appraisal.Status) []any {
	return []any{
		string(a.Status), string(docs.Content), nullBytes(docs.Scores),
		formatTimePtr(a.SubmittedAt), formatTimePtr(a.CompletedAt), formatTime(a.UpdatedAt),
		a.ID, string(expected),
	}
}

func missingOrConflict(ctx context.Context, q querier, id string) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM appraisals WHERE id = ?`, id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return appraisal.ErrNotFound
	}
	return appraisal.ErrConflict
}

func (s *Store) SaveAppraisal(ctx context.Context, a appraisal.Appraisal, expected appraisal.Status) error {
	docs, err := appraisal.EncodeDocuments(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, updateAppraisalSQL, updateArgs(a, docs, expected)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missingOrConflict(ctx, s.db, a.ID)
	}
	return nil
}

func (s *Store) CompleteAppraisal(ctx context.Context, a appraisal.Appraisal, expected appraisal.Status, entry appraisal.LedgerEntry) (bool, error) {
	docs, err := appraisal.EncodeDocuments(a)
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, updateAppraisalSQL, updateArgs(a, docs, expected)...)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, missingOrConflict(ctx, tx, a.ID)
	}
	res, err = tx.ExecContext(ctx, insertLedgerSQL, ledgerArgs(entry)...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) SaveAttachment(ctx context.Context, id string, attachment *appraisal.Attachment, updatedAt time.Time) error {
	raw, err := appraisal.EncodeAttachment(attachment)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE appraisals SET attachment = ?, updated_at = ? WHERE id = ?`, nullBytes(raw), formatTime(updatedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAppraisal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM appraisals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return nil
}

func (s *Store) ListCompletedWithoutLedger(ctx context.Context) ([]appraisal.Appraisal, error) {
	return s.queryAppraisals(ctx, `
    SELECT `+appraisalColumns+`
    FROM appraisals a
    WHERE a.status = ?
      AND NOT EXISTS (SELECT 1 FROM performance_history h WHERE h.appraisal_id = a.id)
    ORDER BY a.completed_at IS NULL, a.completed_at, a.id
  `, string(appraisal.StatusMDApproved))
}

func (s *Store) RecordEvent(ctx context.Context, event appraisal.Event) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO appraisal_events (id, appraisal_id, actor_id, actor_role, action, from_status, to_status, request_id, created_at)
    VALUES (?,?,?,?,?,?,?,?,?)
  `, event.ID, event.AppraisalID, event.ActorID, event.ActorRole, event.Action,
		string(event.FromStatus), string(event.ToStatus), event.RequestID, formatTime(event.CreatedAt))
	return err
}

func (s *Store) ListEvents(ctx context.Context, appraisalID string) ([]appraisal.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, appraisal_id, actor_id, actor_role, action, from_status, to_status, request_id, created_at
    FROM appraisal_events
    WHERE appraisal_id = ?
    ORDER BY seq
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []appraisal.Event{}
	for rows.Next() {
		var e appraisal.Event
		var from, to, created string
		if err := rows.Scan(&e.ID, &e.AppraisalID, &e.ActorID, &e.ActorRole, &e.Action, &from, &to, &e.RequestID, &created); err != nil {
			return nil, err
		}
		e.FromStatus = appraisal.Status(from)
		e.ToStatus = appraisal.Status(to)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const insertLedgerSQL = `
    INSERT INTO performance_history (id, staff_id, period_id, period_label, appraisal_id, score, rating, completed_at, created_at)
    VALUES (?,?,?,?,?,?,?,?,?)
    ON CONFLICT DO NOTHING
  `

func ledgerArgs(entry appraisal.LedgerEntry) []any {
	return []any{
		entry.ID, entry.StaffID, entry.PeriodID, entry.PeriodLabel, entry.AppraisalID,
		entry.Score, entry.Rating, formatTime(entry.CompletedAt), formatTime(entry.CreatedAt),
	}
}

const ledgerColumns = `id, staff_id, period_id, period_label, appraisal_id, score, rating, completed_at, created_at`

func scanLedger(row scanner) (appraisal.LedgerEntry, error) {
	var out appraisal.LedgerEntry
	var completed, created string
	if err := row.Scan(&out.ID, &out.StaffID, &out.PeriodID, &out.PeriodLabel, &out.AppraisalID, &out.Score, &out.Rating, &completed, &created); err != nil {
		return appraisal.LedgerEntry{}, err
	}
	var err error
	if out.CompletedAt, err = parseTime(completed); err != nil {
		return appraisal.LedgerEntry{}, err
	}
	if out.CreatedAt, err = parseTime(created); err != nil {
		return appraisal.LedgerEntry{}, err
	}
	return out, nil
}

func (s *Store) findLedger(ctx context.Context, where string, args ...any) (appraisal.LedgerEntry, bool, error) {
	entry, err := scanLedger(s.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM performance_history WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return appraisal.LedgerEntry{}, false, nil
	}
	if err != nil {
		return appraisal.LedgerEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) FindLedgerEntry(ctx context.Context, staffID, periodID string) (appraisal.LedgerEntry, bool, error) {
	return s.findLedger(ctx, `staff_id = ? AND period_id = ?`, staffID, periodID)
}

func (s *Store) FindLedgerEntryByAppraisal(ctx context.Context, appraisalID string) (appraisal.LedgerEntry, bool, error) {
	return s.findLedger(ctx, `appraisal_id = ?`, appraisalID)
}

func (s *Store) InsertLedgerEntry(ctx context.Context, entry appraisal.LedgerEntry) error {
	res, err := s.db.ExecContext(ctx, insertLedgerSQL, ledgerArgs(entry)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrDuplicate
	}
	return nil
}

func (s *Store) UpdateLedgerEntry(ctx context.Context, entry appraisal.LedgerEntry) error {
	res, err := s.db.ExecContext(ctx, `
    UPDATE performance_history
    SET score = ?, rating = ?, period_label = ?, completed_at = ?
    WHERE id = ?
  `, entry.Score, entry.Rating, entry.PeriodLabel, formatTime(entry.CompletedAt), entry.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appraisal.ErrNotFound
	}
	return nil
}

func (s *Store) ListLedger(ctx context.Context, periodIDs []string) ([]appraisal.LedgerEntry, error) {
	if len(periodIDs) == 0 {
		return []appraisal.LedgerEntry{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(periodIDs)), ",")
	args := make([]any, 0, len(periodIDs))
	for _, id := range periodIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
    SELECT `+ledgerColumns+`
    FROM performance_history
    WHERE period_id IN (`+placeholders+`)
    ORDER BY completed_at, id
  `, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []appraisal.LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
