package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"horas/internal/core"
	"horas/internal/gateway"
)

type dayRecord struct {
	day      core.WorkDay
	version  int64
	synced   int64
	attempts int
	lastErr  string
}

// Store is an in-process gateway. A single mutex makes SaveDay atomic.
type Store struct {
	mu          sync.Mutex
	days        map[string]*dayRecord
	allocations map[string][]core.Allocation
	catalog     core.Catalog
	nextID      int
}

var (
	_ gateway.Gateway        = (*Store)(nil)
	_ gateway.SyncQueue      = (*Store)(nil)
	_ gateway.ActivityLister = (*Store)(nil)
	_ gateway.CatalogWriter  = (*Store)(nil)
)

func New(catalog core.Catalog) *Store {
	return &Store{
		days:        make(map[string]*dayRecord),
		allocations: make(map[string][]core.Allocation),
		catalog:     core.NewCatalog(catalog.Projects, catalog.Stages, catalog.Tasks),
	}
}

// NewFromFiles seeds the catalog from pipe-separated files in base:
//
//	projects.txt  id|name
//	stages.txt    id|project_id|name
//	tasks.txt     id|stage_id|name
//
// A small default catalog is used when projects.txt is missing.
func NewFromFiles(base string) *Store {
	var (
		projects []core.Project
		stages   []core.Stage
		tasks    []core.Task
	)
	for _, f := range readLines(filepath.Join(base, "projects.txt")) {
		if len(f) >= 2 {
			projects = append(projects, core.Project{ID: f[0], Name: f[1], Status: core.CatalogActive})
		}
	}
	for _, f := range readLines(filepath.Join(base, "stages.txt")) {
		if len(f) >= 3 {
			stages = append(stages, core.Stage{ID: f[0], ProjectID: f[1], Name: f[2], Status: core.CatalogActive})
		}
	}
	for _, f := range readLines(filepath.Join(base, "tasks.txt")) {
		if len(f) >= 3 {
			tasks = append(tasks, core.Task{ID: f[0], StageID: f[1], Name: f[2], Status: core.CatalogActive})
		}
	}
	if len(projects) == 0 {
		projects = []core.Project{
			{ID: "interno", Name: "Interno", Status: core.CatalogActive},
			{ID: "suporte", Name: "Suporte", Status: core.CatalogActive},
		}
		stages = nil
		tasks = nil
	}
	return New(core.NewCatalog(projects, stages, tasks))
}

func key(userID string, date core.Date) string {
	return userID + "|" + date.String()
}

func (s *Store) FetchWorkDay(_ context.Context, userID string, date core.Date) (*core.WorkDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.days[key(userID, date)]
	if !ok {
		return nil, nil
	}
	day := rec.day
	return &day, nil
}

func (s *Store) FetchAllocations(_ context.Context, userID string, date core.Date) ([]core.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.allocations[key(userID, date)]), nil
}

func (s *Store) FetchRange(_ context.Context, userID string, start, end core.Date) (core.RangeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out core.RangeData
	for d := start; !d.After(end.Time); d = d.AddDays(1) {
		k := key(userID, d)
		if rec, ok := s.days[k]; ok {
			out.WorkDays = append(out.WorkDays, rec.day)
		}
		out.Allocations = append(out.Allocations, s.allocations[k]...)
	}
	return out, nil
}

func (s *Store) SaveWorkDay(_ context.Context, userID string, date core.Date, totalHours float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.upsertLocked(userID, date, totalHours)
	if err != nil {
		return "", err
	}
	return rec.day.ID, nil
}

func (s *Store) ReplaceAllocations(_ context.Context, userID string, date core.Date, allocations []core.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(userID, date, allocations)
	if rec, ok := s.days[key(userID, date)]; ok {
		rec.version++
	}
	return nil
}

func (s *Store) SaveDay(_ context.Context, userID string, date core.Date, totalHours float64, allocations []core.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.upsertLocked(userID, date, totalHours); err != nil {
		return err
	}
	s.replaceLocked(userID, date, allocations)
	return nil
}

func (s *Store) FetchCatalog(_ context.Context) (core.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog, nil
}

func (s *Store) ReplaceCatalog(_ context.Context, catalog core.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = core.NewCatalog(catalog.Projects, catalog.Stages, catalog.Tasks)
	return nil
}

func (s *Store) ListUsersWithActivity(_ context.Context, since core.Date) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var users []string
	for _, rec := range s.days {
		if rec.day.Date.Before(since.Time) || seen[rec.day.UserID] {
			continue
		}
		seen[rec.day.UserID] = true
		users = append(users, rec.day.UserID)
	}
	slices.Sort(users)
	return users, nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]gateway.SyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []gateway.SyncRecord
	for k, rec := range s.days {
		if rec.version <= rec.synced {
			continue
		}
		out = append(out, gateway.SyncRecord{
			Day:         rec.day,
			Allocations: slices.Clone(s.allocations[k]),
			Version:     rec.version,
			Attempts:    rec.attempts,
		})
	}
	slices.SortFunc(out, func(a, b gateway.SyncRecord) int {
		if a.Attempts != b.Attempts {
			return a.Attempts - b.Attempts
		}
		if c := a.Day.Date.Compare(b.Day.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Day.UserID, b.Day.UserID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PendingSyncFor(_ context.Context, userID string, date core.Date) (*gateway.SyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, date)
	rec, ok := s.days[k]
	if !ok || rec.version <= rec.synced {
		return nil, nil
	}
	return &gateway.SyncRecord{
		Day:         rec.day,
		Allocations: slices.Clone(s.allocations[k]),
		Version:     rec.version,
		Attempts:    rec.attempts,
	}, nil
}

func (s *Store) MarkSynced(_ context.Context, userID string, date core.Date, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.days[key(userID, date)]
	if !ok {
		return fmt.Errorf("mark synced %s %s: %w", userID, date, core.ErrNotFound)
	}
	if version > rec.synced {
		rec.synced = version
	}
	rec.attempts = 0
	rec.lastErr = ""
	return nil
}

func (s *Store) MarkSyncFailed(_ context.Context, userID string, date core.Date, version int64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.days[key(userID, date)]
	if !ok {
		return fmt.Errorf("mark sync failed %s %s: %w", userID, date, core.ErrNotFound)
	}
	if rec.version == version {
		rec.attempts++
		if cause != nil {
			rec.lastErr = cause.Error()
		}
	}
	return nil
}

func (s *Store) upsertLocked(userID string, date core.Date, totalHours float64) (*dayRecord, error) {
	day := core.WorkDay{UserID: userID, Date: date, TotalHours: core.ToStorageDecimal(totalHours)}
	if err := day.Validate(); err != nil {
		return nil, err
	}
	k := key(userID, date)
	rec, ok := s.days[k]
	if !ok {
		s.nextID++
		day.ID = fmt.Sprintf("mem:%d", s.nextID)
		rec = &dayRecord{day: day}
		s.days[k] = rec
	} else {
		day.ID = rec.day.ID
		rec.day = day
	}
	rec.version++
	rec.attempts = 0
	return rec, nil
}

func (s *Store) replaceLocked(userID string, date core.Date, allocations []core.Allocation) {
	next := make([]core.Allocation, 0, len(allocations))
	for _, a := range allocations {
		a.UserID = userID
		a.Date = date
		a.Hours = core.ToStorageDecimal(a.Hours)
		next = append(next, a)
	}
	s.allocations[key(userID, date)] = next
}

// readLines returns the pipe-separated fields of each non-blank,
// non-comment line of path.
func readLines(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out [][]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		out = append(out, fields)
	}
	return out
}
