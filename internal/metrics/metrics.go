package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported on /metrics.
var (
	RowsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_enrollment_rows_processed_total",
		Help: "Spreadsheet rows seen by the enrollment writer.",
	})
	StudentsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_enrollment_students_uploaded_total",
		Help: "Students successfully created by batch uploads.",
	})
	RowsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_enrollment_rows_rejected_total",
		Help: "Rows rejected by validation or uniqueness checks.",
	})
	SessionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_attendance_sessions_recorded_total",
		Help: "Attendance sessions persisted.",
	})
	SessionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_attendance_session_conflicts_total",
		Help: "Take-attendance calls rejected because the session already existed.",
	})
	LinkageDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_attendance_linkage_drift_total",
		Help: "Student back-references that failed to write during session recording.",
	})
	LinkagePatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_attendance_linkage_patched_total",
		Help: "Student back-references patched by the repair pass.",
	})
	OrphansRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_repair_orphan_students_removed_total",
		Help: "Students deleted because their class no longer exists.",
	})
)
