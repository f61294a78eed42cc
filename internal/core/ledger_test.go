package core

import (
	"errors"
	"fmt"
	"testing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestLedgerEndToEnd(t *testing.T) {
	cases := []struct {
		name            string
		second          string
		wantDistributed float64
		wantStatus      DayStatus
		wantRemaining   float64
	}{
		{"fully distributed", "4", 8, StatusComplete, 0},
		{"partially distributed", "2", 6, StatusPartial, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLedger("u1", NewDate(2025, 3, 3), WithIDGenerator(sequentialIDs()))
			if err := l.SetTotalHours(ParseDuration("8")); err != nil {
				t.Fatalf("set total: %v", err)
			}
			if _, err := l.AddAllocation(AllocationInput{ProjectID: "P1", Hours: ParseDuration("4")}); err != nil {
				t.Fatalf("first allocation: %v", err)
			}
			if _, err := l.AddAllocation(AllocationInput{ProjectID: "P2", Hours: ParseDuration(tc.second)}); err != nil {
				t.Fatalf("second allocation: %v", err)
			}
			if got := l.DistributedHours(); got != tc.wantDistributed {
				t.Errorf("distributed = %v, want %v", got, tc.wantDistributed)
			}
			if got := l.Status(); got != tc.wantStatus {
				t.Errorf("status = %s, want %s", got, tc.wantStatus)
			}
			if got := l.Remaining(); got != tc.wantRemaining {
				t.Errorf("remaining = %v, want %v", got, tc.wantRemaining)
			}
		})
	}
}

func TestLedgerSetTotalHoursRejectsNegative(t *testing.T) {
	l := NewLedger("u1", NewDate(2025, 3, 3))
	if err := l.SetTotalHours(8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.SetTotalHours(-1); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if l.TotalHours() != 8 {
		t.Errorf("failed update must keep previous total, got %v", l.TotalHours())
	}
}

func TestLedgerAddAllocationValidation(t *testing.T) {
	l := NewLedger("u1", NewDate(2025, 3, 3), WithCatalog(testCatalog()))
	cases := []struct {
		name string
		in   AllocationInput
		want error
	}{
		{"negative hours", AllocationInput{ProjectID: "P1", Hours: -1}, ErrInvalidDuration},
		{"stage of other project", AllocationInput{ProjectID: "P2", StageID: "S1", Hours: 1}, ErrInvalidHierarchy},
		{"task without stage", AllocationInput{ProjectID: "P1", TaskID: "T1", Hours: 1}, ErrInvalidHierarchy},
		{"valid", AllocationInput{ProjectID: "P1", StageID: "S1", TaskID: "T1", Hours: 1}, nil},
		{"incomplete row", AllocationInput{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.AddAllocation(tc.in)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n := len(l.Allocations()); n != 2 {
		t.Errorf("expected 2 accepted allocations, got %d", n)
	}
}

func TestLedgerAllocationIDs(t *testing.T) {
	l := NewLedger("u1", NewDate(2025, 3, 3), WithIDGenerator(sequentialIDs()))
	a, _ := l.AddAllocation(AllocationInput{ProjectID: "P1", Hours: 1})
	b, _ := l.AddAllocation(AllocationInput{ID: "client-1", ProjectID: "P1", Hours: 1})
	if a.ID != "a1" || b.ID != "client-1" {
		t.Fatalf("unexpected ids %q, %q", a.ID, b.ID)
	}
	if _, err := l.AddAllocation(AllocationInput{ID: "client-1", ProjectID: "P2", Hours: 1}); !errors.Is(err, ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", err)
	}
	if a.UserID != "u1" || !a.Date.Equal(NewDate(2025, 3, 3).Time) {
		t.Errorf("allocation not bound to its day: %+v", a)
	}
}

func TestLedgerRemoveAllocationIsIdempotent(t *testing.T) {
	l := NewLedger("u1", NewDate(2025, 3, 3), WithIDGenerator(sequentialIDs()))
	a, _ := l.AddAllocation(AllocationInput{ProjectID: "P1", Hours: 2})
	l.RemoveAllocation(a.ID)
	l.RemoveAllocation(a.ID)
	l.RemoveAllocation("missing")
	if n := len(l.Allocations()); n != 0 {
		t.Fatalf("expected empty ledger, got %d allocations", n)
	}
}

func TestLedgerUpdateAllocation(t *testing.T) {
	newLedger := func(t *testing.T) (*Ledger, Allocation) {
		t.Helper()
		l := NewLedger("u1", NewDate(2025, 3, 3), WithCatalog(testCatalog()), WithIDGenerator(sequentialIDs()))
		a, err := l.AddAllocation(AllocationInput{ProjectID: "P1", StageID: "S1", TaskID: "T1", Hours: 3})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		return l, a
	}

	t.Run("project change clears stage and task", func(t *testing.T) {
		l, a := newLedger(t)
		got, err := l.UpdateAllocation(a.ID, AllocationPatch{ProjectID: strPtr("P2")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.StageID != "" || got.TaskID != "" {
			t.Fatalf("expected stage and task cleared, got %+v", got)
		}
		stored, _ := l.Allocation(a.ID)
		if stored.ProjectID != "P2" || stored.StageID != "" || stored.TaskID != "" {
			t.Fatalf("ledger not updated: %+v", stored)
		}
	})

	t.Run("stage change clears task", func(t *testing.T) {
		l, a := newLedger(t)
		got, err := l.UpdateAllocation(a.ID, AllocationPatch{StageID: strPtr("S2")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ProjectID != "P1" || got.StageID != "S2" || got.TaskID != "" {
			t.Fatalf("unexpected allocation %+v", got)
		}
	})

	t.Run("project and stage together", func(t *testing.T) {
		l, a := newLedger(t)
		got, err := l.UpdateAllocation(a.ID, AllocationPatch{ProjectID: strPtr("P2"), StageID: strPtr("S3")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.StageID != "S3" || got.TaskID != "" {
			t.Fatalf("unexpected allocation %+v", got)
		}
	})

	t.Run("same project keeps stage", func(t *testing.T) {
		l, a := newLedger(t)
		got, err := l.UpdateAllocation(a.ID, AllocationPatch{ProjectID: strPtr("P1"), Hours: floatPtr(5)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.StageID != "S1" || got.TaskID != "T1" || got.Hours != 5 {
			t.Fatalf("unexpected allocation %+v", got)
		}
	})

	t.Run("invalid update leaves ledger untouched", func(t *testing.T) {
		l, a := newLedger(t)
		if _, err := l.UpdateAllocation(a.ID, AllocationPatch{Hours: floatPtr(-2)}); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration, got %v", err)
		}
		if _, err := l.UpdateAllocation(a.ID, AllocationPatch{TaskID: strPtr("T2")}); !errors.Is(err, ErrInvalidHierarchy) {
			t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
		}
		stored, _ := l.Allocation(a.ID)
		if stored != a {
			t.Fatalf("allocation changed: %+v", stored)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		l, _ := newLedger(t)
		if _, err := l.UpdateAllocation("missing", AllocationPatch{Hours: floatPtr(1)}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLedgerReplaceAllocationsIsAllOrNothing(t *testing.T) {
	l := NewLedger("u1", NewDate(2025, 3, 3), WithCatalog(testCatalog()), WithIDGenerator(sequentialIDs()))
	if _, err := l.AddAllocation(AllocationInput{ProjectID: "P1", Hours: 8}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := l.ReplaceAllocations([]AllocationInput{
		{ProjectID: "P1", Hours: 4},
		{ProjectID: "P2", StageID: "S1", Hours: 4},
	})
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
	}
	if got := l.DistributedHours(); got != 8 {
		t.Fatalf("previous allocations must survive a rejected replace, distributed = %v", got)
	}

	next, err := l.ReplaceAllocations([]AllocationInput{
		{ID: "keep", ProjectID: "P1", Hours: 4},
		{ProjectID: "P2", Hours: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next) != 2 || next[0].ID != "keep" || next[1].ID == "" {
		t.Fatalf("unexpected allocations %+v", next)
	}
}

func TestLoadLedger(t *testing.T) {
	day := WorkDay{ID: "w1", UserID: "u1", Date: NewDate(2025, 3, 3), TotalHours: 8}
	l := LoadLedger(day, []Allocation{{ID: "x", ProjectID: "P1", Hours: 8}})
	if l.Status() != StatusComplete {
		t.Fatalf("expected complete, got %s", l.Status())
	}
	a, ok := l.Allocation("x")
	if !ok || a.UserID != "u1" {
		t.Fatalf("allocation not rebound to day: %+v", a)
	}
}
