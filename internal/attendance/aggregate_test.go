package attendance

import (
	"math"
	"testing"
)

func records(present, absent int) []Record {
	var res []Record
	for i := 0; i < present; i++ {
		res = append(res, Record{Present: true})
	}
	for i := 0; i < absent; i++ {
		res = append(res, Record{Present: false})
	}
	return res
}

func TestSummarize_ConcreteCase(t *testing.T) {
	// 60 present of 80 sessions taken, 100 configured working days.
	rep := Summarize(records(60, 20), 100, DefaultPolicy())

	if rep.Percentage != 75 {
		t.Errorf("actual percentage = %v, want 75", rep.Percentage)
	}
	if rep.WorkingDaysPercentage != 60 {
		t.Errorf("working-days percentage = %v, want 60", rep.WorkingDaysPercentage)
	}
	if rep.Status != "Safe" {
		t.Errorf("status = %s, want Safe", rep.Status)
	}
	if rep.Fine != 0 || rep.NeedsAction {
		t.Errorf("no fine expected at 75%%: fine=%d needsAction=%v", rep.Fine, rep.NeedsAction)
	}
	if rep.PresentDays != 60 || rep.TotalDays != 80 {
		t.Errorf("day counts wrong: %+v", rep)
	}
}

func TestSummarize_StatusTiers(t *testing.T) {
	cases := []struct {
		present, absent int
		want            string
	}{
		{75, 25, "Safe"},
		{80, 20, "Safe"},
		{74, 26, "Warning"},
		{50, 50, "Warning"},
		{49, 51, "Danger"},
		{0, 10, "Danger"},
	}
	for _, tc := range cases {
		rep := Summarize(records(tc.present, tc.absent), 100, DefaultPolicy())
		if rep.Status != tc.want {
			t.Errorf("%d/%d: status = %s, want %s",
				tc.present, tc.present+tc.absent, rep.Status, tc.want)
		}
	}
}

func TestSummarize_FineFormula(t *testing.T) {
	pol := DefaultPolicy()
	// 40 present of 80 taken, 100 working days: required = ceil(75) = 75,
	// shortfall = 35, fine = 35 * 50.
	rep := Summarize(records(40, 40), 100, pol)
	if rep.Fine != 35*50 {
		t.Errorf("fine = %d, want %d", rep.Fine, 35*50)
	}
	if !rep.NeedsAction {
		t.Error("needsAction should be set with a shortfall")
	}
}

func TestSummarize_FineMonotonicity(t *testing.T) {
	pol := DefaultPolicy()
	prev := math.MaxInt
	for present := 0; present <= 100; present++ {
		rep := Summarize(records(present, 100-present), 100, pol)
		if rep.Fine > prev {
			t.Fatalf("fine increased at present=%d: %d > %d", present, rep.Fine, prev)
		}
		if rep.Percentage >= 75 && rep.Fine != 0 {
			t.Fatalf("fine must be zero at %v%%, got %d", rep.Percentage, rep.Fine)
		}
		prev = rep.Fine
	}
}

func TestSummarize_NoRecords(t *testing.T) {
	rep := Summarize(nil, 100, DefaultPolicy())
	if rep.Percentage != 0 || rep.TotalDays != 0 {
		t.Errorf("empty record list: %+v", rep)
	}
	if rep.Status != "Danger" {
		t.Errorf("status = %s, want Danger", rep.Status)
	}
	// Full shortfall: ceil(100*0.75) missed days.
	if rep.Fine != 75*50 {
		t.Errorf("fine = %d, want %d", rep.Fine, 75*50)
	}
}

func TestSummarize_WorkingDaysUnset(t *testing.T) {
	// Before the working-day lock there is no denominator for the term;
	// the actual percentage still works and no fine accrues.
	rep := Summarize(records(3, 7), 0, DefaultPolicy())
	if rep.Percentage != 30 {
		t.Errorf("percentage = %v, want 30", rep.Percentage)
	}
	if rep.WorkingDaysPercentage != 0 {
		t.Errorf("working-days percentage = %v, want 0", rep.WorkingDaysPercentage)
	}
	if rep.Fine != 0 {
		t.Errorf("fine = %d, want 0 with no working days", rep.Fine)
	}
}

func TestSummarize_Rounding(t *testing.T) {
	rep := Summarize(records(1, 2), 0, DefaultPolicy())
	if rep.Percentage != 33.33 {
		t.Errorf("percentage = %v, want 33.33", rep.Percentage)
	}
}
