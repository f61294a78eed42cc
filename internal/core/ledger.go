package core

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

type (
	// AllocationInput describes a new allocation. An empty ID is filled in
	// once, when the allocation enters the ledger.
	AllocationInput struct {
		ID          string  `json:"id,omitempty"`
		ProjectID   string  `json:"projectId"`
		StageID     string  `json:"stageId,omitempty"`
		TaskID      string  `json:"taskId,omitempty"`
		Hours       float64 `json:"hours"`
		Description string  `json:"description,omitempty"`
	}

	// AllocationPatch lists the fields to change on an existing allocation;
	// nil fields are left alone.
	AllocationPatch struct {
		ProjectID   *string
		StageID     *string
		TaskID      *string
		Hours       *float64
		Description *string
	}

	LedgerOption func(*Ledger)

	// Ledger is the in-memory state of one user's day: the clocked total and
	// the ordered allocations distributing it. It never touches storage.
	Ledger struct {
		day         WorkDay
		allocations []Allocation
		catalog     Catalog
		newID       func() string
	}
)

// WithCatalog enables catalog membership checks on allocations.
func WithCatalog(c Catalog) LedgerOption {
	return func(l *Ledger) { l.catalog = c }
}

// WithIDGenerator replaces the UUID generator used for new allocations.
func WithIDGenerator(fn func() string) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

func NewLedger(userID string, date Date, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		day:   WorkDay{UserID: userID, Date: date},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadLedger rebuilds a ledger from persisted records. Stored allocations are
// trusted and not re-validated.
func LoadLedger(day WorkDay, allocations []Allocation, opts ...LedgerOption) *Ledger {
	l := NewLedger(day.UserID, day.Date, opts...)
	l.day = day
	l.allocations = slices.Clone(allocations)
	for i := range l.allocations {
		l.allocations[i].UserID = day.UserID
		l.allocations[i].Date = day.Date
		if l.allocations[i].ID == "" {
			l.allocations[i].ID = l.newID()
		}
	}
	return l
}

func (l *Ledger) WorkDay() WorkDay {
	return l.day
}

func (l *Ledger) TotalHours() float64 {
	return l.day.TotalHours
}

// Allocations returns a copy of the allocations in insertion order.
func (l *Ledger) Allocations() []Allocation {
	return slices.Clone(l.allocations)
}

func (l *Ledger) Allocation(id string) (Allocation, bool) {
	if i := l.indexOf(id); i >= 0 {
		return l.allocations[i], true
	}
	return Allocation{}, false
}

func (l *Ledger) SetTotalHours(hours float64) error {
	if !validHours(hours) {
		return fieldError("totalHours", ErrInvalidDuration, fmt.Sprintf("%v is not a valid number of hours", hours))
	}
	l.day.TotalHours = hours
	return nil
}

func (l *Ledger) AddAllocation(in AllocationInput) (Allocation, error) {
	a := l.fromInput(in)
	if in.ID != "" && l.indexOf(in.ID) >= 0 {
		return Allocation{}, fieldError("id", ErrDuplicateAllocation, in.ID)
	}
	if err := l.validate(a); err != nil {
		return Allocation{}, err
	}
	if a.ID == "" {
		a.ID = l.newID()
	}
	l.allocations = append(l.allocations, a)
	return a, nil
}

// RemoveAllocation drops the allocation with id. Removing an unknown id is a no-op.
func (l *Ledger) RemoveAllocation(id string) {
	if i := l.indexOf(id); i >= 0 {
		l.allocations = slices.Delete(l.allocations, i, i+1)
	}
}

// UpdateAllocation applies patch to the allocation with id. A new project
// clears stage and task; a new stage clears task. The ledger is left
// untouched when the result does not validate.
func (l *Ledger) UpdateAllocation(id string, patch AllocationPatch) (Allocation, error) {
	i := l.indexOf(id)
	if i < 0 {
		return Allocation{}, fieldError("id", ErrNotFound, "allocation "+id)
	}
	a := l.allocations[i]
	if patch.ProjectID != nil && *patch.ProjectID != a.ProjectID {
		a.ProjectID = *patch.ProjectID
		a.StageID = ""
		a.TaskID = ""
	}
	if patch.StageID != nil && *patch.StageID != a.StageID {
		a.StageID = *patch.StageID
		a.TaskID = ""
	}
	if patch.TaskID != nil {
		a.TaskID = *patch.TaskID
	}
	if patch.Hours != nil {
		a.Hours = *patch.Hours
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if err := l.validate(a); err != nil {
		return Allocation{}, err
	}
	l.allocations[i] = a
	return a, nil
}

// ReplaceAllocations swaps the whole allocation set. Every input is validated
// before anything changes; on error the previous set is kept.
func (l *Ledger) ReplaceAllocations(inputs []AllocationInput) ([]Allocation, error) {
	next := make([]Allocation, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for n, in := range inputs {
		a := l.fromInput(in)
		if err := l.validate(a); err != nil {
			return nil, fmt.Errorf("allocation %d: %w", n, err)
		}
		if a.ID == "" {
			a.ID = l.newID()
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("allocation %d: %w", n, fieldError("id", ErrDuplicateAllocation, a.ID))
		}
		seen[a.ID] = true
		next = append(next, a)
	}
	l.allocations = next
	return slices.Clone(next), nil
}

// DistributedHours sums the allocation hours at storage precision.
func (l *Ledger) DistributedHours() float64 {
	return SumHours(l.allocations)
}

func (l *Ledger) fromInput(in AllocationInput) Allocation {
	return Allocation{
		ID:          in.ID,
		UserID:      l.day.UserID,
		Date:        l.day.Date,
		ProjectID:   in.ProjectID,
		StageID:     in.StageID,
		TaskID:      in.TaskID,
		Hours:       in.Hours,
		Description: in.Description,
	}
}

func (l *Ledger) validate(a Allocation) error {
	if err := l.catalog.CheckHierarchy(a.ProjectID, a.StageID, a.TaskID); err != nil {
		return err
	}
	if !validHours(a.Hours) {
		return fieldError("hours", ErrInvalidDuration, fmt.Sprintf("%v is not a valid number of hours", a.Hours))
	}
	return nil
}

func (l *Ledger) indexOf(id string) int {
	return slices.IndexFunc(l.allocations, func(a Allocation) bool { return a.ID == id })
}
