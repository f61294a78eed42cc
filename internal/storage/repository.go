package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"horas/internal/core"
	"horas/internal/gateway"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Repository is the SQL gateway shared by the SQLite and PostgreSQL backends.
type Repository struct {
	db      *sql.DB
	dialect dialect
}

var (
	_ gateway.Gateway        = (*Repository)(nil)
	_ gateway.SyncQueue      = (*Repository)(nil)
	_ gateway.ActivityLister = (*Repository)(nil)
	_ gateway.CatalogWriter  = (*Repository)(nil)
	_ gateway.Pinger         = (*Repository)(nil)
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertWorkDaySQL = `
INSERT INTO work_days (user_id, date, total_hours, version, created_at, updated_at)
VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT (user_id, date) DO UPDATE SET
    total_hours   = excluded.total_hours,
    version       = work_days.version + 1,
    sync_attempts = 0,
    updated_at    = CURRENT_TIMESTAMP
RETURNING id`

// FetchWorkDay implements gateway.WorkDayReader
func (r *Repository) FetchWorkDay(ctx context.Context, userID string, date core.Date) (*core.WorkDay, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(
		`SELECT id, user_id, date, total_hours FROM work_days WHERE user_id = ? AND date = ?`),
		userID, date.String())
	day, err := scanWorkDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work day: %w", err)
	}
	return &day, nil
}

// FetchAllocations implements gateway.AllocationReader
func (r *Repository) FetchAllocations(ctx context.Context, userID string, date core.Date) ([]core.Allocation, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT id, user_id, date, project_id, stage_id, task_id, worked_hours, description
FROM allocations WHERE user_id = ? AND date = ? ORDER BY position`),
		userID, date.String())
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return scanAllocations(rows)
}

// FetchRange implements gateway.RangeReader
func (r *Repository) FetchRange(ctx context.Context, userID string, start, end core.Date) (core.RangeData, error) {
	var data core.RangeData
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT id, user_id, date, total_hours FROM work_days
WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`),
		userID, start.String(), end.String())
	if err != nil {
		return data, fmt.Errorf("list work days: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		day, err := scanWorkDay(rows)
		if err != nil {
			return data, fmt.Errorf("scan work day: %w", err)
		}
		data.WorkDays = append(data.WorkDays, day)
	}
	if err := rows.Err(); err != nil {
		return data, fmt.Errorf("iterate work days: %w", err)
	}

	arows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT id, user_id, date, project_id, stage_id, task_id, worked_hours, description
FROM allocations WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, position`),
		userID, start.String(), end.String())
	if err != nil {
		return data, fmt.Errorf("list allocations: %w", err)
	}
	data.Allocations, err = scanAllocations(arows)
	if err != nil {
		return data, err
	}
	return data, nil
}

// SaveWorkDay implements gateway.WorkDayWriter
func (r *Repository) SaveWorkDay(ctx context.Context, userID string, date core.Date, totalHours float64) (string, error) {
	id, err := r.upsertWorkDay(ctx, r.db, userID, date, totalHours)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Work day saved",
		"backend", r.dialect.String(),
		"id", id,
		"user_id", userID,
		"date", date.String(),
		"total_hours", core.ToStorageDecimal(totalHours))
	return id, nil
}

// ReplaceAllocations implements gateway.AllocationWriter
func (r *Repository) ReplaceAllocations(ctx context.Context, userID string, date core.Date, allocations []core.Allocation) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.replaceAllocations(ctx, tx, userID, date, allocations); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.dialect.rebind(`
UPDATE work_days SET version = version + 1, sync_attempts = 0, updated_at = CURRENT_TIMESTAMP
WHERE user_id = ? AND date = ?`), userID, date.String())
		if err != nil {
			return fmt.Errorf("bump work day version: %w", err)
		}
		return nil
	})
}

// SaveDay implements gateway.DaySaver
func (r *Repository) SaveDay(ctx context.Context, userID string, date core.Date, totalHours float64, allocations []core.Allocation) error {
	var id string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = r.upsertWorkDay(ctx, tx, userID, date, totalHours); err != nil {
			return err
		}
		return r.replaceAllocations(ctx, tx, userID, date, allocations)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Day saved",
		"backend", r.dialect.String(),
		"id", id,
		"user_id", userID,
		"date", date.String(),
		"total_hours", core.ToStorageDecimal(totalHours),
		"allocations", len(allocations))
	return nil
}

// FetchCatalog implements gateway.CatalogReader
func (r *Repository) FetchCatalog(ctx context.Context) (core.Catalog, error) {
	var (
		projects []core.Project
		stages   []core.Stage
		tasks    []core.Task
	)
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, status FROM projects ORDER BY name, id`)
	if err != nil {
		return core.Catalog{}, fmt.Errorf("list projects: %w", err)
	}
	err = eachRow(rows, func() error {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status); err != nil {
			return err
		}
		projects = append(projects, p)
		return nil
	})
	if err != nil {
		return core.Catalog{}, fmt.Errorf("scan projects: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT id, project_id, name, status FROM stages ORDER BY name, id`)
	if err != nil {
		return core.Catalog{}, fmt.Errorf("list stages: %w", err)
	}
	err = eachRow(rows, func() error {
		var s core.Stage
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Status); err != nil {
			return err
		}
		stages = append(stages, s)
		return nil
	})
	if err != nil {
		return core.Catalog{}, fmt.Errorf("scan stages: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT id, stage_id, name, status FROM tasks ORDER BY name, id`)
	if err != nil {
		return core.Catalog{}, fmt.Errorf("list tasks: %w", err)
	}
	err = eachRow(rows, func() error {
		var t core.Task
		if err := rows.Scan(&t.ID, &t.StageID, &t.Name, &t.Status); err != nil {
			return err
		}
		tasks = append(tasks, t)
		return nil
	})
	if err != nil {
		return core.Catalog{}, fmt.Errorf("scan tasks: %w", err)
	}

	return core.NewCatalog(projects, stages, tasks), nil
}

// ReplaceCatalog implements gateway.CatalogWriter
func (r *Repository) ReplaceCatalog(ctx context.Context, catalog core.Catalog) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"tasks", "stages", "projects"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, p := range catalog.Projects {
			if _, err := tx.ExecContext(ctx, r.dialect.rebind(`INSERT INTO projects (id, name, status) VALUES (?, ?, ?)`),
				p.ID, p.Name, statusOrActive(p.Status)); err != nil {
				return fmt.Errorf("insert project %s: %w", p.ID, err)
			}
		}
		for _, s := range catalog.Stages {
			if _, err := tx.ExecContext(ctx, r.dialect.rebind(`INSERT INTO stages (id, project_id, name, status) VALUES (?, ?, ?, ?)`),
				s.ID, s.ProjectID, s.Name, statusOrActive(s.Status)); err != nil {
				return fmt.Errorf("insert stage %s: %w", s.ID, err)
			}
		}
		for _, t := range catalog.Tasks {
			if _, err := tx.ExecContext(ctx, r.dialect.rebind(`INSERT INTO tasks (id, stage_id, name, status) VALUES (?, ?, ?, ?)`),
				t.ID, t.StageID, t.Name, statusOrActive(t.Status)); err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Catalog replaced",
		"backend", r.dialect.String(),
		"projects", len(catalog.Projects),
		"stages", len(catalog.Stages),
		"tasks", len(catalog.Tasks))
	return nil
}

// ListUsersWithActivity implements gateway.ActivityLister
func (r *Repository) ListUsersWithActivity(ctx context.Context, since core.Date) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(
		`SELECT DISTINCT user_id FROM work_days WHERE date >= ? ORDER BY user_id`), since.String())
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	var users []string
	err = eachRow(rows, func() error {
		var u string
		if err := rows.Scan(&u); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan active users: %w", err)
	}
	return users, nil
}

// PendingSync implements gateway.SyncQueue
func (r *Repository) PendingSync(ctx context.Context, limit int) ([]gateway.SyncRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT id, user_id, date, total_hours, version, sync_attempts FROM work_days
WHERE version > synced_version ORDER BY sync_attempts, date, user_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	var records []gateway.SyncRecord
	err = eachRow(rows, func() error {
		var (
			rec     gateway.SyncRecord
			id      int64
			rawDate any
		)
		if err := rows.Scan(&id, &rec.Day.UserID, &rawDate, &rec.Day.TotalHours, &rec.Version, &rec.Attempts); err != nil {
			return err
		}
		d, err := scanDate(rawDate)
		if err != nil {
			return err
		}
		rec.Day.ID = strconv.FormatInt(id, 10)
		rec.Day.Date = d
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending sync: %w", err)
	}

	for i := range records {
		allocations, err := r.FetchAllocations(ctx, records[i].Day.UserID, records[i].Day.Date)
		if err != nil {
			return nil, err
		}
		records[i].Allocations = allocations
	}
	return records, nil
}

// PendingSyncFor implements gateway.SyncQueue
func (r *Repository) PendingSyncFor(ctx context.Context, userID string, date core.Date) (*gateway.SyncRecord, error) {
	var (
		rec     gateway.SyncRecord
		id      int64
		rawDate any
	)
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT id, user_id, date, total_hours, version, sync_attempts FROM work_days
WHERE user_id = ? AND date = ? AND version > synced_version`), userID, date.String()).
		Scan(&id, &rec.Day.UserID, &rawDate, &rec.Day.TotalHours, &rec.Version, &rec.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	if rec.Day.Date, err = scanDate(rawDate); err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	rec.Day.ID = strconv.FormatInt(id, 10)
	if rec.Allocations, err = r.FetchAllocations(ctx, userID, date); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkSynced implements gateway.SyncQueue
func (r *Repository) MarkSynced(ctx context.Context, userID string, date core.Date, version int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE work_days SET synced_version = ?, sync_attempts = 0, sync_error = NULL
WHERE user_id = ? AND date = ? AND synced_version < ?`),
		version, userID, date.String(), version)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.ensureDayExists(ctx, userID, date, "mark synced")
	}
	return nil
}

// MarkSyncFailed implements gateway.SyncQueue
func (r *Repository) MarkSyncFailed(ctx context.Context, userID string, date core.Date, version int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
UPDATE work_days SET sync_attempts = sync_attempts + 1, sync_error = ?
WHERE user_id = ? AND date = ? AND version = ?`),
		msg, userID, date.String(), version)
	if err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.ensureDayExists(ctx, userID, date, "mark sync failed")
	}
	return nil
}

func (r *Repository) ensureDayExists(ctx context.Context, userID string, date core.Date, op string) error {
	day, err := r.FetchWorkDay(ctx, userID, date)
	if err != nil {
		return err
	}
	if day == nil {
		return fmt.Errorf("%s %s %s: %w", op, userID, date, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) upsertWorkDay(ctx context.Context, q querier, userID string, date core.Date, totalHours float64) (string, error) {
	day := core.WorkDay{UserID: userID, Date: date, TotalHours: core.ToStorageDecimal(totalHours)}
	if err := day.Validate(); err != nil {
		return "", err
	}
	var id int64
	if err := q.QueryRowContext(ctx, r.dialect.rebind(upsertWorkDaySQL),
		day.UserID, day.Date.String(), day.TotalHours).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert work day: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) replaceAllocations(ctx context.Context, q querier, userID string, date core.Date, allocations []core.Allocation) error {
	if _, err := q.ExecContext(ctx, r.dialect.rebind(
		`DELETE FROM allocations WHERE user_id = ? AND date = ?`), userID, date.String()); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	insert := r.dialect.rebind(`
INSERT INTO allocations (id, user_id, date, position, project_id, stage_id, task_id, worked_hours, description)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, a := range allocations {
		if a.ID == "" {
			return fmt.Errorf("insert allocation %d: missing id", i)
		}
		if _, err := q.ExecContext(ctx, insert,
			a.ID, userID, date.String(), i, a.ProjectID,
			nullable(a.StageID), nullable(a.TaskID),
			core.ToStorageDecimal(a.Hours), a.Description); err != nil {
			return fmt.Errorf("insert allocation %s: %w", a.ID, err)
		}
	}
	return nil
}

func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkDay(s rowScanner) (core.WorkDay, error) {
	var (
		day     core.WorkDay
		id      int64
		rawDate any
	)
	if err := s.Scan(&id, &day.UserID, &rawDate, &day.TotalHours); err != nil {
		return day, err
	}
	d, err := scanDate(rawDate)
	if err != nil {
		return day, err
	}
	day.ID = strconv.FormatInt(id, 10)
	day.Date = d
	return day, nil
}

func scanAllocations(rows *sql.Rows) ([]core.Allocation, error) {
	var out []core.Allocation
	err := eachRow(rows, func() error {
		var (
			a       core.Allocation
			rawDate any
			stage   sql.NullString
			task    sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &rawDate, &a.ProjectID, &stage, &task, &a.Hours, &a.Description); err != nil {
			return err
		}
		d, err := scanDate(rawDate)
		if err != nil {
			return err
		}
		a.Date = d
		a.StageID = stage.String
		a.TaskID = task.String
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan allocations: %w", err)
	}
	return out, nil
}

// eachRow calls fn for every row and closes rows.
func eachRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scanDate accepts the TEXT dates SQLite returns and the DATE values PostgreSQL returns.
func scanDate(v any) (core.Date, error) {
	switch t := v.(type) {
	case time.Time:
		return core.DateOf(t), nil
	case string:
		return core.ParseDate(firstTen(t))
	case []byte:
		return core.ParseDate(firstTen(string(t)))
	default:
		return core.Date{}, fmt.Errorf("%w: unsupported column type %T", core.ErrInvalidDate, v)
	}
}

func firstTen(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusOrActive(s core.CatalogStatus) string {
	if s == "" {
		return string(core.CatalogActive)
	}
	return string(s)
}
