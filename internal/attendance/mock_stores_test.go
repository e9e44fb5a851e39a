package attendance

import (
	"context"
	"fmt"
	"time"

	"campus/internal/roster"
)

// mockSessionStore keeps sessions and student records in memory with the
// same uniqueness behavior the Postgres repo gets from its indexes.
type mockSessionStore struct {
	sessions map[string]*Session
	records  []*Record

	appendErrFor map[string]bool // student ids whose record write should fail
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions:     make(map[string]*Session),
		appendErrFor: make(map[string]bool),
	}
}

func (m *mockSessionStore) FindSession(_ context.Context, classID, subject string, day time.Time) (*Session, error) {
	for _, s := range m.sessions {
		if s.ClassID == classID && s.Subject == subject && s.Day.Equal(day) {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrSessionNotFound
}

func (m *mockSessionStore) InsertSession(ctx context.Context, sess *Session) error {
	if existing, _ := m.FindSession(ctx, sess.ClassID, sess.Subject, sess.Day); existing != nil {
		return ErrSessionExists
	}
	if sess.ID == "" {
		sess.ID = fmt.Sprintf("session-%d", len(m.sessions)+1)
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockSessionStore) ReplaceSession(_ context.Context, sess *Session) error {
	if _, ok := m.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockSessionStore) AppendRecord(_ context.Context, rec *Record) error {
	if m.appendErrFor[rec.StudentID] {
		return fmt.Errorf("write failed for %s", rec.StudentID)
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("record-%d", len(m.records)+1)
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockSessionStore) UpdateRecordsBySession(_ context.Context, sessionID string, present map[string]bool) error {
	for _, rec := range m.records {
		if rec.SessionID != sessionID {
			continue
		}
		if p, ok := present[rec.StudentID]; ok {
			rec.Present = p
		}
	}
	return nil
}

func (m *mockSessionStore) HasLinkedRecord(_ context.Context, sessionID, studentID string) (bool, error) {
	for _, rec := range m.records {
		if rec.SessionID == sessionID && rec.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionStore) FindUnlinked(_ context.Context, studentID, subject string, day time.Time, present bool) (string, error) {
	for _, rec := range m.records {
		if rec.SessionID == "" && rec.StudentID == studentID && rec.Subject == subject &&
			rec.Day.Equal(day) && rec.Present == present {
			return rec.ID, nil
		}
	}
	return "", nil
}

func (m *mockSessionStore) LinkRecord(_ context.Context, recordID, sessionID string) error {
	for _, rec := range m.records {
		if rec.ID == recordID {
			rec.SessionID = sessionID
			return nil
		}
	}
	return fmt.Errorf("record %s missing", recordID)
}

func (m *mockSessionStore) ListRecords(_ context.Context, studentID string) ([]Record, error) {
	var res []Record
	for _, rec := range m.records {
		if rec.StudentID == studentID {
			res = append(res, *rec)
		}
	}
	return res, nil
}

func (m *mockSessionStore) recordsFor(studentID string) []*Record {
	var res []*Record
	for _, rec := range m.records {
		if rec.StudentID == studentID {
			res = append(res, rec)
		}
	}
	return res
}

// mockRosterStore resolves classes and students from maps.
type mockRosterStore struct {
	classesByCode map[string]*roster.Class
	classesByID   map[string]*roster.Class
	students      map[string]*roster.Student
}

func newMockRosterStore() *mockRosterStore {
	return &mockRosterStore{
		classesByCode: make(map[string]*roster.Class),
		classesByID:   make(map[string]*roster.Class),
		students:      make(map[string]*roster.Student),
	}
}

func (m *mockRosterStore) addClass(code string) *roster.Class {
	cls := &roster.Class{ID: "class-" + code, Code: code, Active: true}
	m.classesByCode[code] = cls
	m.classesByID[cls.ID] = cls
	return cls
}

func (m *mockRosterStore) addStudent(cls *roster.Class, name, rollNumber string) *roster.Student {
	st := &roster.Student{
		ID:         "student-" + rollNumber,
		Name:       name,
		RollNumber: rollNumber,
		ClassID:    cls.ID,
	}
	m.students[st.ID] = st
	return st
}

func (m *mockRosterStore) GetClassByCode(_ context.Context, code string) (*roster.Class, error) {
	if cls, ok := m.classesByCode[code]; ok {
		return cls, nil
	}
	return nil, roster.ErrClassNotFound
}

func (m *mockRosterStore) GetClass(_ context.Context, id string) (*roster.Class, error) {
	if cls, ok := m.classesByID[id]; ok {
		return cls, nil
	}
	return nil, roster.ErrClassNotFound
}

func (m *mockRosterStore) GetStudent(_ context.Context, id string) (*roster.Student, error) {
	if st, ok := m.students[id]; ok {
		return st, nil
	}
	return nil, roster.ErrStudentNotFound
}
