package appraisal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres implementation of StoreAPI.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)

const (
	staffColumns     = `id::text, name, email, role, designation, department, COALESCE(supervisor_id::text, ''), created_at`
	periodColumns    = `id::text, year, quarter, label, is_active, created_at`
	appraisalColumns = `id::text, staff_id::text, supervisor_id::text, period_id::text, period_label, status,
    content, scores, attachment, submitted_at, completed_at, created_at, updated_at`
	ledgerColumns = `id::text, staff_id::text, period_id::text, period_label, appraisal_id::text, score, rating, completed_at, created_at`
)

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func scanStaff(row pgx.Row) (Staff, error) {
	var out Staff
	err := row.Scan(&out.ID, &out.Name, &out.Email, &out.Role, &out.Designation, &out.Department, &out.SupervisorID, &out.CreatedAt)
	return out, err
}

func (s *Store) CreateStaff(ctx context.Context, staff Staff) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO staff (id, name, email, role, designation, department, supervisor_id, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, staff.ID, staff.Name, staff.Email, staff.Role, staff.Designation, staff.Department, nullIfEmpty(staff.SupervisorID), staff.CreatedAt)
	if isUniqueViolation(err) {
		return ErrStaffExists
	}
	return err
}

func (s *Store) GetStaff(ctx context.Context, id string) (Staff, error) {
	if !validID(id) {
		return Staff{}, ErrNotFound
	}
	out, err := scanStaff(s.DB.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id))
	return out, notFound(err)
}

func (s *Store) ListStaff(ctx context.Context, filter StaffFilter) ([]Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE 1=1`
	var args []any
	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if filter.SupervisorID != "" {
		args = append(args, filter.SupervisorID)
		query += fmt.Sprintf(" AND supervisor_id::text = $%d", len(args))
	}
	query += " ORDER BY name, id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Staff{}
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, staff)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStaff(ctx context.Context, staff Staff) error {
	if !validID(staff.ID) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE staff SET name = $1, email = $2, role = $3, designation = $4, department = $5, supervisor_id = $6
    WHERE id = $7
  `, staff.Name, staff.Email, staff.Role, staff.Designation, staff.Department, nullIfEmpty(staff.SupervisorID), staff.ID)
	if isUniqueViolation(err) {
		return ErrStaffExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteStaff(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var supervising int
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM appraisals WHERE supervisor_id = $1 AND staff_id <> $1`, id).Scan(&supervising); err != nil {
		return err
	}
	if supervising > 0 {
		return ErrStaffInUse
	}
	if _, err := tx.Exec(ctx, `DELETE FROM appraisals WHERE staff_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanPeriod(row pgx.Row) (Period, error) {
	var out Period
	err := row.Scan(&out.ID, &out.Year, &out.Quarter, &out.Label, &out.IsActive, &out.CreatedAt)
	return out, err
}

func (s *Store) CreatePeriod(ctx context.Context, period Period) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO periods (id, year, quarter, label, is_active, created_at)
    VALUES ($1,$2,$3,$4,false,$5)
  `, period.ID, period.Year, period.Quarter, period.Label, period.CreatedAt)
	if isUniqueViolation(err) {
		return ErrPeriodExists
	}
	return err
}

func (s *Store) GetPeriod(ctx context.Context, id string) (Period, error) {
	if !validID(id) {
		return Period{}, ErrNotFound
	}
	out, err := scanPeriod(s.DB.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, id))
	return out, notFound(err)
}

func (s *Store) ActivePeriod(ctx context.Context) (Period, error) {
	out, err := scanPeriod(s.DB.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE is_active LIMIT 1`))
	return out, notFound(err)
}

func (s *Store) ListPeriods(ctx context.Context, year int) ([]Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods`
	var args []any
	if year > 0 {
		query += " WHERE year = $1"
		args = append(args, year)
	}
	query += " ORDER BY year DESC, quarter DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Period{}
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
	if !validID(id) {
		return ErrNotFound
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE periods SET is_active = false WHERE is_active AND id <> $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE periods SET is_active = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) UpdatePeriodLabel(ctx context.Context, id, label string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, `UPDATE periods SET label = $1 WHERE id = $2`, label, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePeriod(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inUse int
	if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM appraisals WHERE period_id = $1`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return ErrPeriodInUse
	}
	tag, err := tx.Exec(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanAppraisal(row pgx.Row) (Appraisal, error) {
	var out Appraisal
	var status string
	var docs Documents
	err := row.Scan(
		&out.ID, &out.StaffID, &out.SupervisorID, &out.PeriodID, &out.PeriodLabel, &status,
		&docs.Content, &docs.Scores, &docs.Attachment,
		&out.SubmittedAt, &out.CompletedAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return Appraisal{}, err
	}
	out.Status = Status(status)
	if err := DecodeDocuments(&out, docs); err != nil {
		return Appraisal{}, err
	}
	return out, nil
}

func (s *Store) CreateAppraisal(ctx context.Context, a Appraisal) error {
	docs, err := EncodeDocuments(a)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO appraisals (id, staff_id, supervisor_id, period_id, period_label, status,
      content, scores, attachment, submitted_at, completed_at, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, a.ID, a.StaffID, a.SupervisorID, a.PeriodID, a.PeriodLabel, string(a.Status),
		docs.Content, nullJSON(docs.Scores), nullJSON(docs.Attachment), a.SubmittedAt, a.CompletedAt, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateAppraisal
	}
	return err
}

func (s *Store) LoadAppraisal(ctx context.Context, id string) (Appraisal, error) {
	if !validID(id) {
		return Appraisal{}, ErrNotFound
	}
	out, err := scanAppraisal(s.DB.QueryRow(ctx, `SELECT `+appraisalColumns+` FROM appraisals WHERE id = $1`, id))
	return out, notFound(err)
}

func (s *Store) ListAppraisals(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error) {
	var conditions []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.StaffID != "" {
		add("staff_id::text = $%d", filter.StaffID)
	}
	if filter.SupervisorID != "" {
		add("supervisor_id::text = $%d", filter.SupervisorID)
	}
	if filter.PeriodID != "" {
		add("period_id::text = $%d", filter.PeriodID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ExcludeDrafts {
		add("status <> $%d", string(StatusDraft))
	}

	query := `SELECT ` + appraisalColumns + ` FROM appraisals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	return s.queryAppraisals(ctx, query, args...)
}

func (s *Store) queryAppraisals(ctx context.Context, query string, args ...any) ([]Appraisal, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Appraisal{}
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
    SET status = $2, content = $3, scores = $4, submitted_at = $5, completed_at = $6, updated_at = $7
    WHERE id = $1 AND status = $8
  `

// missingOrConflict explains a guarded update that touched no row.
func missingOrConflict(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appraisals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *Store) SaveAppraisal(ctx context.Context, a Appraisal, expected Status) error {
	if !validID(a.ID) {
		return ErrNotFound
	}
	docs, err := EncodeDocuments(a)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, updateAppraisalSQL,
		a.ID, string(a.Status), docs.Content, nullJSON(docs.Scores), a.SubmittedAt, a.CompletedAt, a.UpdatedAt, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return missingOrConflict(ctx, s.DB, a.ID)
	}
	return nil
}

func (s *Store) CompleteAppraisal(ctx context.Context, a Appraisal, expected Status, entry LedgerEntry) (bool, error) {
	if !validID(a.ID) {
		return false, ErrNotFound
	}
	docs, err := EncodeDocuments(a)
	if err != nil {
		return false, err
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateAppraisalSQL,
		a.ID, string(a.Status), docs.Content, nullJSON(docs.Scores), a.SubmittedAt, a.CompletedAt, a.UpdatedAt, string(expected))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, missingOrConflict(ctx, tx, a.ID)
	}

	tag, err = tx.Exec(ctx, insertLedgerSQL,
		entry.ID, entry.StaffID, entry.PeriodID, entry.PeriodLabel, entry.AppraisalID, entry.Score, entry.Rating, entry.CompletedAt, entry.CreatedAt)
	if err != nil {
		return false, err
	}
	created := tag.RowsAffected() == 1
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return created, nil
}

func (s *Store) SaveAttachment(ctx context.Context, id string, attachment *Attachment, updatedAt time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	raw, err := EncodeAttachment(attachment)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `UPDATE appraisals SET attachment = $2, updated_at = $3 WHERE id = $1`, id, nullJSON(raw), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAppraisal(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM appraisals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCompletedWithoutLedger(ctx context.Context) ([]Appraisal, error) {
	return s.queryAppraisals(ctx, `
    SELECT `+appraisalColumns+`
    FROM appraisals a
    WHERE a.status = $1
      AND NOT EXISTS (SELECT 1 FROM performance_history h WHERE h.appraisal_id = a.id)
    ORDER BY a.completed_at NULLS LAST, a.id
  `, string(StatusMDApproved))
}

func (s *Store) RecordEvent(ctx context.Context, event Event) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO appraisal_events (id, appraisal_id, actor_id, actor_role, action, from_status, to_status, request_id, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, event.ID, event.AppraisalID, event.ActorID, event.ActorRole, event.Action,
		string(event.FromStatus), string(event.ToStatus), event.RequestID, event.CreatedAt)
	return err
}

func (s *Store) ListEvents(ctx context.Context, appraisalID string) ([]Event, error) {
	if !validID(appraisalID) {
		return []Event{}, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, appraisal_id::text, actor_id, actor_role, action, from_status, to_status, request_id, created_at
    FROM appraisal_events
    WHERE appraisal_id = $1
    ORDER BY seq
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var from, to string
		if err := rows.Scan(&e.ID, &e.AppraisalID, &e.ActorID, &e.ActorRole, &e.Action, &from, &to, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

const insertLedgerSQL = `
    INSERT INTO performance_history (id, staff_id, period_id, period_label, appraisal_id, score, rating, completed_at, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    ON CONFLICT DO NOTHING
  `

func scanLedger(row pgx.Row) (LedgerEntry, error) {
	var out LedgerEntry
	err := row.Scan(&out.ID, &out.StaffID, &out.PeriodID, &out.PeriodLabel, &out.AppraisalID, &out.Score, &out.Rating, &out.CompletedAt, &out.CreatedAt)
	return out, err
}

func (s *Store) findLedger(ctx context.Context, where string, args ...any) (LedgerEntry, bool, error) {
	entry, err := scanLedger(s.DB.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM performance_history WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return LedgerEntry{}, false, nil
	}
	if err != nil {
		return LedgerEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) FindLedgerEntry(ctx context.Context, staffID, periodID string) (LedgerEntry, bool, error) {
	if !validID(staffID) || !validID(periodID) {
		return LedgerEntry{}, false, nil
	}
	return s.findLedger(ctx, `staff_id = $1 AND period_id = $2`, staffID, periodID)
}

func (s *Store) FindLedgerEntryByAppraisal(ctx context.Context, appraisalID string) (LedgerEntry, bool, error) {
	if !validID(appraisalID) {
		return LedgerEntry{}, false, nil
	}
	return s.findLedger(ctx, `appraisal_id = $1`, appraisalID)
}

func (s *Store) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	tag, err := s.DB.Exec(ctx, insertLedgerSQL,
		entry.ID, entry.StaffID, entry.PeriodID, entry.PeriodLabel, entry.AppraisalID, entry.Score, entry.Rating, entry.CompletedAt, entry.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *Store) UpdateLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	if !validID(entry.ID) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE performance_history
    SET score = $2, rating = $3, period_label = $4, completed_at = $5
    WHERE id = $1
  `, entry.ID, entry.Score, entry.Rating, entry.PeriodLabel, entry.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListLedger(ctx context.Context, periodIDs []string) ([]LedgerEntry, error) {
	if len(periodIDs) == 0 {
		return []LedgerEntry{}, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT `+ledgerColumns+`
    FROM performance_history
    WHERE period_id::text = ANY($1::text[])
    ORDER BY completed_at, id
  `, periodIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
