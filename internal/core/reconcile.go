package core

import "math"

// Reconciliation is the comparison of a day's clocked total against its
// distributed hours. Remaining is negative when the day is over-allocated.
type Reconciliation struct {
	TotalHours       float64   `json:"totalHours"`
	DistributedHours float64   `json:"distributedHours"`
	Remaining        float64   `json:"remaining"`
	Difference       float64   `json:"difference"`
	Status           DayStatus `json:"status"`
	OverAllocated    bool      `json:"overAllocated"`
}

// Classify derives the day status from its total and distributed hours.
// Both values are compared at storage precision, so a day is complete only
// when they agree to the hundredth of an hour.
func Classify(totalHours, distributedHours float64) DayStatus {
	total := hundredths(totalHours)
	distributed := hundredths(distributedHours)
	switch {
	case total == 0 && distributed == 0:
		return StatusNone
	case total > 0 && total == distributed:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// Remaining is total minus distributed at storage precision. It is not clamped.
func Remaining(totalHours, distributedHours float64) float64 {
	return fromHundredths(hundredths(totalHours) - hundredths(distributedHours))
}

// SumHours adds allocation hours after rounding each to storage precision.
func SumHours(allocations []Allocation) float64 {
	var sum int64
	for _, a := range allocations {
		sum += hundredths(a.Hours)
	}
	return fromHundredths(sum)
}

func Reconcile(totalHours float64, allocations []Allocation) Reconciliation {
	distributed := SumHours(allocations)
	remaining := Remaining(totalHours, distributed)
	return Reconciliation{
		TotalHours:       ToStorageDecimal(totalHours),
		DistributedHours: distributed,
		Remaining:        remaining,
		Difference:       math.Abs(remaining),
		Status:           Classify(totalHours, distributed),
		OverAllocated:    remaining < 0,
	}
}

// SaveableAllocations keeps the rows that can be persisted: a project is set
// and hours are positive. Incomplete rows are dropped without error.
func SaveableAllocations(allocations []Allocation) []Allocation {
	out := make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		if a.ProjectID == "" || hundredths(a.Hours) <= 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ValidateForSave rejects a day whose total has not been recorded.
func ValidateForSave(totalHours float64) error {
	if hundredths(totalHours) <= 0 {
		return fieldError("totalHours", ErrMissingTotal, "record the day's total before distributing it")
	}
	return nil
}

func (l *Ledger) Reconcile() Reconciliation {
	return Reconcile(l.day.TotalHours, l.allocations)
}

func (l *Ledger) Status() DayStatus {
	return Classify(l.day.TotalHours, l.DistributedHours())
}

func (l *Ledger) Remaining() float64 {
	return Remaining(l.day.TotalHours, l.DistributedHours())
}

// PrepareSave returns the day and the allocation subset to persist, or
// ErrMissingTotal when the day has no total yet. The ledger is not modified.
func (l *Ledger) PrepareSave() (WorkDay, []Allocation, error) {
	if err := ValidateForSave(l.day.TotalHours); err != nil {
		return WorkDay{}, nil, err
	}
	day := l.day
	day.TotalHours = ToStorageDecimal(day.TotalHours)
	saveable := SaveableAllocations(l.allocations)
	for i := range saveable {
		saveable[i].Hours = ToStorageDecimal(saveable[i].Hours)
	}
	return day, saveable, nil
}
