package attendance

import "math"

// Policy holds the tunables for the eligibility computation.
type Policy struct {
	FinePerDay  int
	SafePercent float64
	WarnPercent float64
}

// DefaultPolicy mirrors the administrative defaults: ₹50 per missed day,
// 75% safe line, 50% warning line.
func DefaultPolicy() Policy {
	return Policy{FinePerDay: 50, SafePercent: 75, WarnPercent: 50}
}

// Report is the derived attendance standing for one student. Nothing in it
// is ever persisted; it is recomputed on every read.
type Report struct {
	Percentage            float64 `json:"percentage"`
	WorkingDaysPercentage float64 `json:"workingDaysPercentage"`
	Status                string  `json:"status"`
	Message               string  `json:"message"`
	Fine                  int     `json:"fine"`
	NeedsAction           bool    `json:"needsAction"`
	PresentDays           int     `json:"presentDays"`
	TotalDays             int     `json:"totalDays"`
}

// Summarize computes a student's attendance standing from their stored
// records and the class's configured working-day total.
//
// Two denominators are meaningful: Percentage uses the sessions actually
// taken and is the one that gates status and the fine; WorkingDaysPercentage
// uses the configured term length and rides along as a labeled secondary
// figure.
func Summarize(records []Record, workingDays int, pol Policy) Report {
	present := 0
	for _, rec := range records {
		if rec.Present {
			present++
		}
	}
	total := len(records)

	rep := Report{PresentDays: present, TotalDays: total}
	if total > 0 {
		rep.Percentage = round2(float64(present) / float64(total) * 100)
	}
	if workingDays > 0 {
		rep.WorkingDaysPercentage = round2(float64(present) / float64(workingDays) * 100)
	}

	switch {
	case rep.Percentage >= pol.SafePercent:
		rep.Status = "Safe"
		rep.Message = "Attendance is on track."
	case rep.Percentage >= pol.WarnPercent:
		rep.Status = "Warning"
		rep.Message = "Attendance is slipping; catch up before it costs you."
	default:
		rep.Status = "Danger"
		rep.Message = "Attendance is critically low."
	}

	if rep.Percentage < pol.SafePercent {
		required := int(math.Ceil(float64(workingDays) * pol.SafePercent / 100))
		shortfall := required - present
		if shortfall < 0 {
			shortfall = 0
		}
		rep.Fine = shortfall * pol.FinePerDay
		rep.NeedsAction = shortfall > 0
	}
	return rep
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
