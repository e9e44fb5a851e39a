package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance sessions and per-student records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindSession returns the session for (class, subject, day), or nil when none exists.
func (r *Repository) FindSession(ctx context.Context, classID, subject string, day time.Time) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, subject, day, taken_by, total, present, absent, created_at
		FROM attendance_sessions
		WHERE class_id = $1 AND subject = $2 AND day = $3
	`, classID, subject, day)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.ClassID, &sess.Subject, &sess.Day, &sess.TakenBy,
		&sess.Total, &sess.Present, &sess.Absent, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// GetSession returns one session with its presence entries.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, subject, day, taken_by, total, present, absent, created_at
		FROM attendance_sessions WHERE id = $1
	`, id)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.ClassID, &sess.Subject, &sess.Day, &sess.TakenBy,
		&sess.Total, &sess.Present, &sess.Absent, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, roll_number, name, present
		FROM session_entries WHERE session_id = $1 ORDER BY roll_number
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StudentID, &e.RollNumber, &e.Name, &e.Present); err != nil {
			return nil, err
		}
		sess.Entries = append(sess.Entries, e)
	}
	return &sess, rows.Err()
}

// InsertSession writes a session and its entries in one transaction. A second
// session for the same (class, subject, day) hits the unique index and comes
// back as ErrSessionExists.
func (r *Repository) InsertSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO attendance_sessions (id, class_id, subject, day, taken_by, total, present, absent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, sess.ID, sess.ClassID, sess.Subject, sess.Day, sess.TakenBy, sess.Total, sess.Present, sess.Absent)
	if err := row.Scan(&sess.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return err
	}
	for _, e := range sess.Entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_entries (session_id, student_id, roll_number, name, present)
			VALUES ($1,$2,$3,$4,$5)
		`, sess.ID, e.StudentID, e.RollNumber, e.Name, e.Present); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceSession swaps a session's entry list wholesale and stores the
// recomputed totals. The only post-creation mutation allowed.
func (r *Repository) ReplaceSession(ctx context.Context, sess *Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_sessions SET taken_by = $2, total = $3, present = $4, absent = $5
		WHERE id = $1
	`, sess.ID, sess.TakenBy, sess.Total, sess.Present, sess.Absent)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_entries WHERE session_id = $1`, sess.ID); err != nil {
		return err
	}
	for _, e := range sess.Entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_entries (session_id, student_id, roll_number, name, present)
			VALUES ($1,$2,$3,$4,$5)
		`, sess.ID, e.StudentID, e.RollNumber, e.Name, e.Present); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendRecord writes one per-student attendance record.
func (r *Repository) AppendRecord(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var sessionID any
	if rec.SessionID != "" {
		sessionID = rec.SessionID
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO student_attendance (id, student_id, subject, day, present, session_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.Subject, rec.Day, rec.Present, sessionID)
	return row.Scan(&rec.CreatedAt)
}

// UpdateRecordsBySession propagates corrected presence flags to the student
// records linked to a session.
func (r *Repository) UpdateRecordsBySession(ctx context.Context, sessionID string, present map[string]bool) error {
	for studentID, p := range present {
		if _, err := r.db.ExecContext(ctx, `
			UPDATE student_attendance SET present = $3
			WHERE session_id = $1 AND student_id = $2
		`, sessionID, studentID, p); err != nil {
			return err
		}
	}
	return nil
}

// HasLinkedRecord reports whether a student already has a record pointing back
// at the session.
func (r *Repository) HasLinkedRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM student_attendance WHERE session_id = $1 AND student_id = $2)
	`, sessionID, studentID).Scan(&exists)
	return exists, err
}

// FindUnlinked returns the id of a student record matching (subject, day,
// present) that carries no session back-reference, or "" when none exists.
func (r *Repository) FindUnlinked(ctx context.Context, studentID, subject string, day time.Time, present bool) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM student_attendance
		WHERE student_id = $1 AND subject = $2 AND day = $3 AND present = $4 AND session_id IS NULL
		LIMIT 1
	`, studentID, subject, day, present).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// LinkRecord patches a record's session back-reference.
func (r *Repository) LinkRecord(ctx context.Context, recordID, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE student_attendance SET session_id = $2 WHERE id = $1`, recordID, sessionID)
	return err
}

// ListRecords returns a student's attendance records, oldest first.
func (r *Repository) ListRecords(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, subject, day, present, COALESCE(session_id::text, ''), created_at
		FROM student_attendance WHERE student_id = $1 ORDER BY day, created_at
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Subject, &rec.Day, &rec.Present,
			&rec.SessionID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListSessionIDs returns every session id; the worker's linkage sweep walks them.
func (r *Repository) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM attendance_sessions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
