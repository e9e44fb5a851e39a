package enrollment

import (
	"context"
	"errors"
	"fmt"

	"campus/internal/roster"
)

// mockStore is an in-memory roster store with the same uniqueness behavior
// the Postgres repository gets from its unique indexes.
type mockStore struct {
	classes   map[string]*roster.Class // by code
	students  []*roster.Student
	usernames map[string]bool
	rolls     map[string]bool

	countErr  error
	probeErr  error
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		classes:   make(map[string]*roster.Class),
		usernames: make(map[string]bool),
		rolls:     make(map[string]bool),
	}
}

func (m *mockStore) addClass(code string) *roster.Class {
	cls := &roster.Class{ID: "class-" + code, Code: code, Active: true}
	m.classes[code] = cls
	return cls
}

func (m *mockStore) seedStudent(classID, name, roll, username string) {
	m.students = append(m.students, &roster.Student{
		ID: fmt.Sprintf("student-%d", len(m.students)+1), Name: name,
		RollNumber: roll, Username: username, ClassID: classID,
	})
	m.usernames[username] = true
	m.rolls[roll] = true
}

func (m *mockStore) GetClassByCode(_ context.Context, code string) (*roster.Class, error) {
	if cls, ok := m.classes[code]; ok {
		return cls, nil
	}
	return nil, roster.ErrClassNotFound
}

func (m *mockStore) CountStudents(_ context.Context, classID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, st := range m.students {
		if st.ClassID == classID {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) UsernameTaken(_ context.Context, username string) (bool, error) {
	if m.probeErr != nil {
		return false, m.probeErr
	}
	return m.usernames[username], nil
}

func (m *mockStore) InsertStudent(_ context.Context, st *roster.Student) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.usernames[st.Username] || m.rolls[st.RollNumber] {
		return roster.ErrDuplicateStudent
	}
	st.ID = fmt.Sprintf("student-%d", len(m.students)+1)
	m.students = append(m.students, st)
	m.usernames[st.Username] = true
	m.rolls[st.RollNumber] = true
	return nil
}

func (m *mockStore) AppendRoster(_ context.Context, classID, studentID string) error {
	for _, cls := range m.classes {
		if cls.ID != classID {
			continue
		}
		for _, id := range cls.Roster {
			if id == studentID {
				return nil
			}
		}
		cls.Roster = append(cls.Roster, studentID)
		return nil
	}
	return errors.New("class missing")
}

func (m *mockStore) WithClassLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
