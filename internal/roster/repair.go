package roster

import (
	"context"

	"go.uber.org/zap"

	"campus/internal/metrics"
)

// RepairStore is the slice of the repository the repair pass needs.
type RepairStore interface {
	DeleteOrphanStudents(ctx context.Context) (int64, error)
	RebuildRosters(ctx context.Context) (int64, error)
}

// RepairReport summarizes one repair run.
type RepairReport struct {
	StudentsRemoved int64 `json:"studentsRemoved"`
	RostersRebuilt  int64 `json:"rostersRebuilt"`
}

// Repairer reconciles the two independently stored sides of the
// class/student relationship: students pointing at dead classes are removed,
// and every roster is rebuilt from the students table.
type Repairer struct {
	store  RepairStore
	logger *zap.Logger
}

// NewRepairer creates a repairer.
func NewRepairer(store RepairStore, logger *zap.Logger) *Repairer {
	return &Repairer{store: store, logger: logger}
}

// Run executes one full repair pass. It only removes entries already proven
// invalid, so it is idempotent and safe alongside normal traffic.
func (r *Repairer) Run(ctx context.Context) (RepairReport, error) {
	removed, err := r.store.DeleteOrphanStudents(ctx)
	if err != nil {
		return RepairReport{}, err
	}
	metrics.OrphansRemoved.Add(float64(removed))

	rebuilt, err := r.store.RebuildRosters(ctx)
	if err != nil {
		return RepairReport{StudentsRemoved: removed}, err
	}

	rep := RepairReport{StudentsRemoved: removed, RostersRebuilt: rebuilt}
	r.logger.Info("orphan repair finished",
		zap.Int64("students_removed", removed),
		zap.Int64("rosters_rebuilt", rebuilt))
	return rep, nil
}
