package attendance

import (
	"errors"
	"time"
)

// Sentinel errors translated at the repository boundary.
var (
	ErrSessionExists   = errors.New("attendance already recorded for this class, subject and date")
	ErrSessionNotFound = errors.New("attendance session not found")
	ErrNoValidStudents = errors.New("no valid students in attendance data")
)

// Entry is one per-student presence mark inside a session.
type Entry struct {
	StudentID  string `json:"studentId"`
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	Present    bool   `json:"present"`
}

// Session is one roll call for one class, one subject, one calendar day.
// At most one session exists per (class, subject, day).
type Session struct {
	ID        string
	ClassID   string
	Subject   string
	Day       time.Time
	TakenBy   string
	Total     int
	Present   int
	Absent    int
	Entries   []Entry
	CreatedAt time.Time
}

// Record is the per-student attendance entry mirroring a session. An empty
// SessionID marks linkage drift the repair pass will patch.
type Record struct {
	ID        string
	StudentID string
	Subject   string
	Day       time.Time
	Present   bool
	SessionID string
	CreatedAt time.Time
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
