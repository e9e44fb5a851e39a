package enrollment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// AllocStore is the slice of the roster repository the allocator probes.
type AllocStore interface {
	CountStudents(ctx context.Context, classID string) (int, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// Allocator derives roll numbers and collision-free usernames. It tracks
// usernames committed earlier in the same batch, because a batch can carry
// duplicate base names the store has not seen yet.
type Allocator struct {
	store AllocStore
	batch map[string]struct{}
}

// NewAllocator creates an allocator for one batch.
func NewAllocator(store AllocStore) *Allocator {
	return &Allocator{store: store, batch: make(map[string]struct{})}
}

// RollNumber derives the next roll number for the class: live student count
// plus one, zero-padded to four digits, prefixed with the class code.
// Rows are written sequentially under the class lock, so the count advances
// with each committed row.
func (a *Allocator) RollNumber(ctx context.Context, classCode, classID string) (string, error) {
	count, err := a.store.CountStudents(ctx, classID)
	if err != nil {
		return "", fmt.Errorf("roll number probe: %w", err)
	}
	return fmt.Sprintf("%s-%04d", classCode, count+1), nil
}

// Username lowercases the student's name, strips whitespace, and appends an
// ascending integer suffix until the candidate is free in both the store and
// the current batch.
func (a *Allocator) Username(ctx context.Context, name string) (string, error) {
	base := usernameBase(name)
	candidate := base
	for i := 1; ; i++ {
		if _, inBatch := a.batch[candidate]; !inBatch {
			taken, err := a.store.UsernameTaken(ctx, candidate)
			if err != nil {
				return "", fmt.Errorf("username probe: %w", err)
			}
			if !taken {
				return candidate, nil
			}
		}
		candidate = base + strconv.Itoa(i)
	}
}

// Commit records a username that was successfully persisted, so later rows
// in the batch see it as taken.
func (a *Allocator) Commit(username string) {
	a.batch[username] = struct{}{}
}

func usernameBase(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
