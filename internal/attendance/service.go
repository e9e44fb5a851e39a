package attendance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campus/internal/metrics"
	"campus/internal/roster"
)

// SessionStore is the persistence surface the recorder needs.
type SessionStore interface {
	FindSession(ctx context.Context, classID, subject string, day time.Time) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	InsertSession(ctx context.Context, sess *Session) error
	ReplaceSession(ctx context.Context, sess *Session) error
	AppendRecord(ctx context.Context, rec *Record) error
	UpdateRecordsBySession(ctx context.Context, sessionID string, present map[string]bool) error
	HasLinkedRecord(ctx context.Context, sessionID, studentID string) (bool, error)
	FindUnlinked(ctx context.Context, studentID, subject string, day time.Time, present bool) (string, error)
	LinkRecord(ctx context.Context, recordID, sessionID string) error
	ListRecords(ctx context.Context, studentID string) ([]Record, error)
}

// RosterStore resolves classes and students.
type RosterStore interface {
	GetClassByCode(ctx context.Context, code string) (*roster.Class, error)
	GetClass(ctx context.Context, id string) (*roster.Class, error)
	GetStudent(ctx context.Context, id string) (*roster.Student, error)
}

// MarkInput is one submitted presence mark.
type MarkInput struct {
	StudentID string `json:"studentId"`
	Present   bool   `json:"present"`
}

// TakeInput is one take-attendance request.
type TakeInput struct {
	Subject   string
	Date      time.Time
	ClassCode string
	TakenBy   string
	Marks     []MarkInput
}

// TakeResult is returned after a session is recorded or corrected.
type TakeResult struct {
	AttendanceID  string    `json:"attendanceId"`
	Subject       string    `json:"subject"`
	Date          time.Time `json:"date"`
	TotalStudents int       `json:"totalStudents"`
	PresentCount  int       `json:"presentCount"`
	AbsentCount   int       `json:"absentCount"`
}

// Service records attendance sessions and keeps student records in step.
type Service struct {
	sessions SessionStore
	rosters  RosterStore
	logger   *zap.Logger
}

// NewService creates an attendance service.
func NewService(sessions SessionStore, rosters RosterStore, logger *zap.Logger) *Service {
	return &Service{sessions: sessions, rosters: rosters, logger: logger}
}

// TakeAttendance records one roll call. At most one session may exist per
// (class, subject, day); a repeat submission fails with ErrSessionExists no
// matter what marks it carries.
func (s *Service) TakeAttendance(ctx context.Context, in TakeInput) (TakeResult, error) {
	cls, err := s.rosters.GetClassByCode(ctx, in.ClassCode)
	if err != nil {
		return TakeResult{}, fmt.Errorf("resolve class %s: %w", in.ClassCode, err)
	}
	day := Day(in.Date)

	existing, err := s.sessions.FindSession(ctx, cls.ID, in.Subject, day)
	if err != nil {
		return TakeResult{}, fmt.Errorf("session lookup: %w", err)
	}
	if existing != nil {
		metrics.SessionConflicts.Inc()
		return TakeResult{}, ErrSessionExists
	}

	entries := s.resolveMarks(ctx, cls, in.Marks)
	if len(entries) == 0 {
		return TakeResult{}, ErrNoValidStudents
	}

	sess := &Session{
		ClassID: cls.ID,
		Subject: in.Subject,
		Day:     day,
		TakenBy: in.TakenBy,
		Entries: entries,
	}
	sess.Total, sess.Present, sess.Absent = totals(entries)

	if err := s.sessions.InsertSession(ctx, sess); err != nil {
		if err == ErrSessionExists {
			metrics.SessionConflicts.Inc()
		}
		return TakeResult{}, err
	}
	metrics.SessionsRecorded.Inc()

	// Student back-references are written after the session commit and are
	// not atomic with it. A failed append is logged and left for the linkage
	// repair pass; it never fails the call.
	for _, e := range sess.Entries {
		rec := &Record{
			StudentID: e.StudentID,
			Subject:   sess.Subject,
			Day:       sess.Day,
			Present:   e.Present,
			SessionID: sess.ID,
		}
		if err := s.sessions.AppendRecord(ctx, rec); err != nil {
			metrics.LinkageDrift.Inc()
			s.logger.Warn("student attendance record not written, awaiting repair",
				zap.String("session", sess.ID),
				zap.String("student", e.RollNumber),
				zap.Error(err))
		}
	}

	return TakeResult{
		AttendanceID:  sess.ID,
		Subject:       sess.Subject,
		Date:          sess.Day,
		TotalStudents: sess.Total,
		PresentCount:  sess.Present,
		AbsentCount:   sess.Absent,
	}, nil
}

// UpdateAttendance replaces a session's presence list wholesale, recomputes
// totals and propagates the corrected flags to linked student records.
func (s *Service) UpdateAttendance(ctx context.Context, sessionID string, marks []MarkInput) (TakeResult, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return TakeResult{}, err
	}
	cls, err := s.rosters.GetClass(ctx, sess.ClassID)
	if err != nil {
		return TakeResult{}, fmt.Errorf("resolve class %s: %w", sess.ClassID, err)
	}

	entries := s.resolveMarks(ctx, cls, marks)
	if len(entries) == 0 {
		return TakeResult{}, ErrNoValidStudents
	}

	sess.Entries = entries
	sess.Total, sess.Present, sess.Absent = totals(entries)
	if err := s.sessions.ReplaceSession(ctx, sess); err != nil {
		return TakeResult{}, err
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.StudentID] = e.Present
	}
	if err := s.sessions.UpdateRecordsBySession(ctx, sess.ID, present); err != nil {
		s.logger.Warn("record propagation incomplete, awaiting repair",
			zap.String("session", sess.ID), zap.Error(err))
	}

	return TakeResult{
		AttendanceID:  sess.ID,
		Subject:       sess.Subject,
		Date:          sess.Day,
		TotalStudents: sess.Total,
		PresentCount:  sess.Present,
		AbsentCount:   sess.Absent,
	}, nil
}

// RepairLinkage patches student records that lost their session back-reference:
// an unlinked record matching (subject, day, present) is relinked, and a
// missing record is inserted outright. Idempotent.
func (s *Service) RepairLinkage(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	patched := 0
	for _, e := range sess.Entries {
		linked, err := s.sessions.HasLinkedRecord(ctx, sess.ID, e.StudentID)
		if err != nil {
			return patched, err
		}
		if linked {
			continue
		}
		recordID, err := s.sessions.FindUnlinked(ctx, e.StudentID, sess.Subject, sess.Day, e.Present)
		if err != nil {
			return patched, err
		}
		if recordID != "" {
			if err := s.sessions.LinkRecord(ctx, recordID, sess.ID); err != nil {
				return patched, err
			}
		} else {
			rec := &Record{
				StudentID: e.StudentID,
				Subject:   sess.Subject,
				Day:       sess.Day,
				Present:   e.Present,
				SessionID: sess.ID,
			}
			if err := s.sessions.AppendRecord(ctx, rec); err != nil {
				return patched, err
			}
		}
		metrics.LinkagePatched.Inc()
		patched++
	}
	if patched > 0 {
		s.logger.Info("linkage repaired",
			zap.String("session", sess.ID), zap.Int("patched", patched))
	}
	return patched, nil
}

// StudentRecords exposes a student's attendance list for dashboard reads.
func (s *Service) StudentRecords(ctx context.Context, studentID string) ([]Record, error) {
	return s.sessions.ListRecords(ctx, studentID)
}

// resolveMarks drops marks whose student does not resolve or belongs to a
// different class; the survivors become session entries. Duplicate marks for
// one student keep the first occurrence.
func (s *Service) resolveMarks(ctx context.Context, cls *roster.Class, marks []MarkInput) []Entry {
	seen := make(map[string]struct{}, len(marks))
	var entries []Entry
	for _, m := range marks {
		if _, dup := seen[m.StudentID]; dup {
			continue
		}
		st, err := s.rosters.GetStudent(ctx, m.StudentID)
		if err != nil {
			s.logger.Debug("mark skipped: student not found", zap.String("student", m.StudentID))
			continue
		}
		if st.ClassID != cls.ID {
			s.logger.Debug("mark skipped: student not in class",
				zap.String("student", st.RollNumber), zap.String("class", cls.Code))
			continue
		}
		seen[m.StudentID] = struct{}{}
		entries = append(entries, Entry{
			StudentID:  st.ID,
			RollNumber: st.RollNumber,
			Name:       st.Name,
			Present:    m.Present,
		})
	}
	return entries
}

func totals(entries []Entry) (total, present, absent int) {
	total = len(entries)
	for _, e := range entries {
		if e.Present {
			present++
		}
	}
	return total, present, total - present
}
