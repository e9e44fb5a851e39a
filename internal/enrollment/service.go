package enrollment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"campus/internal/metrics"
	"campus/internal/roster"
)

// Store is the roster surface the enrollment writer needs.
type Store interface {
	AllocStore
	GetClassByCode(ctx context.Context, code string) (*roster.Class, error)
	InsertStudent(ctx context.Context, st *roster.Student) error
	AppendRoster(ctx context.Context, classID, studentID string) error
	WithClassLock(ctx context.Context, classID string, fn func(context.Context) error) error
}

// Created is one freshly enrolled student, returned once so credentials can
// be handed to the student.
type Created struct {
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// BatchResult is the outcome of one batch upload.
type BatchResult struct {
	Message          string    `json:"message"`
	StudentsUploaded int       `json:"studentsUploaded"`
	TotalProcessed   int       `json:"totalProcessed"`
	Students         []Created `json:"students"`
	Errors           []string  `json:"errors"`
}

// Service turns raw spreadsheet rows into enrolled students.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an enrollment service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// EnrollBatch processes rows strictly in order under a per-class lock.
// Row failures are collected, never abort the batch; a missing class aborts
// the whole call. Already-written rows stay committed when a later row fails.
func (s *Service) EnrollBatch(ctx context.Context, classCode string, rows []Row) (BatchResult, error) {
	cls, err := s.store.GetClassByCode(ctx, classCode)
	if err != nil {
		return BatchResult{}, fmt.Errorf("resolve class %s: %w", classCode, err)
	}

	res := BatchResult{TotalProcessed: len(rows), Students: []Created{}, Errors: []string{}}
	err = s.store.WithClassLock(ctx, cls.ID, func(ctx context.Context) error {
		alloc := NewAllocator(s.store)
		for _, row := range rows {
			metrics.RowsProcessed.Inc()
			created, rowErr := s.enrollRow(ctx, cls, alloc, row)
			if rowErr != nil {
				metrics.RowsRejected.Inc()
				res.Errors = append(res.Errors, rowErr.Error())
				continue
			}
			metrics.StudentsUploaded.Inc()
			res.Students = append(res.Students, created)
			res.StudentsUploaded++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	res.Message = fmt.Sprintf("%d of %d students uploaded", res.StudentsUploaded, res.TotalProcessed)
	s.logger.Info("batch upload finished",
		zap.String("class", cls.Code),
		zap.Int("uploaded", res.StudentsUploaded),
		zap.Int("processed", res.TotalProcessed),
		zap.Int("failed", len(res.Errors)))
	return res, nil
}

func (s *Service) enrollRow(ctx context.Context, cls *roster.Class, alloc *Allocator, row Row) (Created, error) {
	valid, err := ValidateRow(row)
	if err != nil {
		return Created{}, err
	}

	rollNumber, err := alloc.RollNumber(ctx, cls.Code, cls.ID)
	if err != nil {
		return Created{}, fmt.Errorf("%s: %w", valid.Name, err)
	}
	username, err := alloc.Username(ctx, valid.Name)
	if err != nil {
		return Created{}, fmt.Errorf("%s: %w", valid.Name, err)
	}

	st := &roster.Student{
		Name:        valid.Name,
		RollNumber:  rollNumber,
		Username:    username,
		Secret:      valid.DOB,
		ClassID:     cls.ID,
		DOB:         valid.DOB,
		ParentName:  valid.ParentName,
		ParentPhone: valid.ParentPhone,
		Address:     valid.Address,
	}
	if err := s.store.InsertStudent(ctx, st); err != nil {
		if errors.Is(err, roster.ErrDuplicateStudent) {
			return Created{}, fmt.Errorf("%s: duplicate student (roll number or username already exists)", valid.Name)
		}
		return Created{}, fmt.Errorf("%s: persist failed: %w", valid.Name, err)
	}
	alloc.Commit(username)

	// Roster append only after a successful insert. A failure here leaves a
	// student the roster does not list yet; the repair pass rebuilds rosters
	// from the students table, so the drift is recoverable.
	if err := s.store.AppendRoster(ctx, cls.ID, st.ID); err != nil {
		s.logger.Warn("roster append failed, awaiting repair",
			zap.String("class", cls.Code),
			zap.String("student", st.RollNumber),
			zap.Error(err))
	}

	return Created{
		Name:       st.Name,
		RollNumber: st.RollNumber,
		Username:   st.Username,
		Password:   st.Secret,
	}, nil
}
