package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors translated at the repository boundary.
var (
	ErrClassNotFound     = errors.New("class not found")
	ErrClassExists       = errors.New("class already exists")
	ErrStudentNotFound   = errors.New("student not found")
	ErrDuplicateStudent  = errors.New("duplicate student")
	ErrWorkingDaysLocked = errors.New("working days already locked")
)

// Subject pairs a taught subject with the teacher responsible for it.
type Subject struct {
	Name    string `json:"name"`
	Teacher string `json:"teacher"`
}

// Class represents one cohort. The roster column is a derived index over
// students.class_id; it is kept on writes and rebuilt by the repair pass,
// never treated as the source of truth.
type Class struct {
	ID                string
	Code              string
	University        string
	Course            string
	Year              int
	Semester          int
	Subjects          []Subject
	Roster            []string
	WorkingDays       int
	WorkingDaysLocked bool
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Student represents one enrollee. Roll number and username are unique
// across the whole student population, enforced by unique indexes.
type Student struct {
	ID          string
	Name        string
	RollNumber  string
	Username    string
	Secret      string
	ClassID     string
	DOB         string
	ParentName  string
	ParentPhone string
	Address     string
	CreatedAt   time.Time
}

// Mark is one recorded score for a student.
type Mark struct {
	ID        string
	StudentID string
	Subject   string
	Score     int
	MaxScore  int
	ExamType  string
	CreatedAt time.Time
}

// ClassCode derives the unique class code from its parts,
// e.g. ("BCU", "MCA", 1, 1) -> "BCU-MCA-1-1".
func ClassCode(university, course string, year, semester int) string {
	norm := func(s string) string {
		return strings.ToUpper(strings.Join(strings.Fields(s), ""))
	}
	return fmt.Sprintf("%s-%s-%d-%d", norm(university), norm(course), year, semester)
}
