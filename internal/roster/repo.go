package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Repository persists classes, students and marks in Postgres.
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

// CreateClass inserts a new class; its code must be globally unique.
func (r *Repository) CreateClass(ctx context.Context, cls *Class) error {
	if cls.ID == "" {
		cls.ID = uuid.NewString()
	}
	if cls.Code == "" {
		cls.Code = ClassCode(cls.University, cls.Course, cls.Year, cls.Semester)
	}
	subjects, err := json.Marshal(cls.Subjects)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (id, code, university, course, year, semester, subjects, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE)
		RETURNING created_at, updated_at
	`, cls.ID, cls.Code, cls.University, cls.Course, cls.Year, cls.Semester, subjects)
	if err := row.Scan(&cls.CreatedAt, &cls.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrClassExists
		}
		return err
	}
	cls.Active = true
	return nil
}

const classColumns = `id, code, university, course, year, semester, subjects, roster,
		working_days, working_days_locked, active, created_at, updated_at`

func scanClass(row interface{ Scan(...any) error }) (*Class, error) {
	var cls Class
	var subjects []byte
	err := row.Scan(&cls.ID, &cls.Code, &cls.University, &cls.Course, &cls.Year, &cls.Semester,
		&subjects, pq.Array(&cls.Roster), &cls.WorkingDays, &cls.WorkingDaysLocked,
		&cls.Active, &cls.CreatedAt, &cls.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if len(subjects) > 0 {
		if err := json.Unmarshal(subjects, &cls.Subjects); err != nil {
			return nil, err
		}
	}
	return &cls, nil
}

// GetClassByCode returns one class by its unique code.
func (r *Repository) GetClassByCode(ctx context.Context, code string) (*Class, error) {
	return scanClass(r.db.QueryRowContext(ctx,
		`SELECT `+classColumns+` FROM classes WHERE code = $1`, code))
}

// GetClass returns one class by id.
func (r *Repository) GetClass(ctx context.Context, id string) (*Class, error) {
	return scanClass(r.db.QueryRowContext(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
}

// ListClasses returns all classes ordered by code.
func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Class
	for rows.Next() {
		cls, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *cls)
	}
	return res, rows.Err()
}

// SetWorkingDays sets the term's working-day total once; further writes fail.
func (r *Repository) SetWorkingDays(ctx context.Context, code string, days int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes SET working_days = $2, working_days_locked = TRUE, updated_at = NOW()
		WHERE code = $1 AND working_days_locked = FALSE
	`, code, days)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetClassByCode(ctx, code); err != nil {
			return err
		}
		return ErrWorkingDaysLocked
	}
	return nil
}

// DeactivateClass clears the active flag.
func (r *Repository) DeactivateClass(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE classes SET active = FALSE, updated_at = NOW() WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClassNotFound
	}
	return nil
}

// DeleteClass removes a class and every record owned by its students.
func (r *Repository) DeleteClass(ctx context.Context, code string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var classID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM classes WHERE code = $1`, code).Scan(&classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrClassNotFound
		}
		return err
	}
	stmts := []string{
		`DELETE FROM student_attendance WHERE student_id IN (SELECT id FROM students WHERE class_id = $1)`,
		`DELETE FROM student_marks WHERE student_id IN (SELECT id FROM students WHERE class_id = $1)`,
		`DELETE FROM session_entries WHERE session_id IN (SELECT id FROM attendance_sessions WHERE class_id = $1)`,
		`DELETE FROM attendance_sessions WHERE class_id = $1`,
		`DELETE FROM students WHERE class_id = $1`,
		`DELETE FROM classes WHERE id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, classID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountStudents returns how many students the class currently owns.
func (r *Repository) CountStudents(ctx context.Context, classID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE class_id = $1`, classID).Scan(&n)
	return n, err
}

// UsernameTaken probes the unique username index.
func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// InsertStudent persists one student; a roll-number or username collision
// surfaces as ErrDuplicateStudent.
func (r *Repository) InsertStudent(ctx context.Context, st *Student) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, roll_number, username, secret, class_id, dob, parent_name, parent_phone, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, st.ID, st.Name, st.RollNumber, st.Username, st.Secret, st.ClassID,
		st.DOB, st.ParentName, st.ParentPhone, st.Address)
	if err := row.Scan(&st.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateStudent
		}
		return err
	}
	return nil
}

// AppendRoster adds a student id to a class roster with set semantics:
// appending an already-present id is a no-op.
func (r *Repository) AppendRoster(ctx context.Context, classID, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE classes SET roster = array_append(roster, $2), updated_at = NOW()
		WHERE id = $1 AND NOT roster @> ARRAY[$2]
	`, classID, studentID)
	return err
}

const studentColumns = `id, name, roll_number, username, secret, class_id, dob, parent_name, parent_phone, address, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.Name, &st.RollNumber, &st.Username, &st.Secret, &st.ClassID,
		&st.DOB, &st.ParentName, &st.ParentPhone, &st.Address, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &st, nil
}

// GetStudent returns one student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

// GetStudentByRoll returns one student by roll number.
func (r *Repository) GetStudentByRoll(ctx context.Context, roll string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE roll_number = $1`, roll))
}

// GetStudentByUsername returns one student by login username.
func (r *Repository) GetStudentByUsername(ctx context.Context, username string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE username = $1`, username))
}

// ListStudentsByClass returns a class's students ordered by roll number.
func (r *Repository) ListStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY roll_number`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *st)
	}
	return res, rows.Err()
}

// AddMark appends one mark record to a student.
func (r *Repository) AddMark(ctx context.Context, m *Mark) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO student_marks (id, student_id, subject, score, max_score, exam_type)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, m.ID, m.StudentID, m.Subject, m.Score, m.MaxScore, m.ExamType)
	return row.Scan(&m.CreatedAt)
}

// ListMarks returns a student's marks, oldest first.
func (r *Repository) ListMarks(ctx context.Context, studentID string) ([]Mark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, subject, score, max_score, exam_type, created_at
		FROM student_marks WHERE student_id = $1 ORDER BY created_at
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Mark
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.ID, &m.StudentID, &m.Subject, &m.Score, &m.MaxScore, &m.ExamType, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// WithClassLock runs fn while holding a per-class advisory lock, making the
// batch the single writer for that class's roll-number sequence.
func (r *Repository) WithClassLock(ctx context.Context, classID string, fn func(context.Context) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	key := lockKey(classID)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return err
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

func lockKey(classID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(classID))
	return int64(h.Sum64())
}

// DeleteOrphanStudents removes students whose class reference no longer
// resolves, along with their attendance and mark records.
func (r *Repository) DeleteOrphanStudents(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const orphanFilter = `class_id NOT IN (SELECT id FROM classes)`
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM student_attendance WHERE student_id IN (SELECT id FROM students WHERE `+orphanFilter+`)`); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM student_marks WHERE student_id IN (SELECT id FROM students WHERE `+orphanFilter+`)`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE `+orphanFilter)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// RebuildRosters refreshes every class roster from the students table,
// dropping identifiers that no longer resolve.
func (r *Repository) RebuildRosters(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes SET roster = COALESCE(
			(SELECT array_agg(s.id::text ORDER BY s.roll_number) FROM students s WHERE s.class_id = classes.id),
			'{}'
		), updated_at = NOW()
	`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
