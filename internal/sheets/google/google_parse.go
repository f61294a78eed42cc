package google

import (
	"fmt"
	"strings"

	"horas/internal/core"
	ports "horas/internal/sheets"
)

// dayRows renders a day as sheet rows:
//
//	Date | User | Total | Distributed | Status | Project | Stage | Task | Hours | Description | Version
//
// Hours are written as HH:MM so the sheet matches what users typed.
func dayRows(day ports.DayExport) [][]any {
	rec := day.Reconciliation
	head := []any{
		day.Date.String(),
		day.UserID,
		core.FormatHours(rec.TotalHours),
		core.FormatHours(rec.DistributedHours),
		string(rec.Status),
	}
	if len(day.Allocations) == 0 {
		return [][]any{append(head, "", "", "", "", "", day.Version)}
	}
	rows := make([][]any, 0, len(day.Allocations))
	for _, a := range day.Allocations {
		row := append([]any(nil), head...)
		row = append(row,
			firstNonEmpty(a.ProjectName, a.ProjectID),
			firstNonEmpty(a.StageName, a.StageID),
			firstNonEmpty(a.TaskName, a.TaskID),
			core.FormatHours(a.Hours),
			a.Description,
			day.Version,
		)
		rows = append(rows, row)
	}
	return rows
}

// parseCatalogRows reads a catalog laid out as
//
//	Kind | ID | Parent | Name | Status
//
// where Kind is project, stage or task and Parent is the owning project
// (for stages) or stage (for tasks). A header row, blank rows and rows
// starting with # are skipped.
func parseCatalogRows(values [][]any) (core.Catalog, error) {
	var (
		projects []core.Project
		stages   []core.Stage
		tasks    []core.Task
	)
	for i, raw := range values {
		row := toStrings(raw)
		kind := strings.ToLower(safeGet(row, 0))
		if kind == "" || strings.HasPrefix(kind, "#") || (i == 0 && kind == "kind") {
			continue
		}
		id, parent, name := safeGet(row, 1), safeGet(row, 2), safeGet(row, 3)
		status := core.CatalogActive
		if strings.EqualFold(safeGet(row, 4), string(core.CatalogArchived)) {
			status = core.CatalogArchived
		}
		if id == "" {
			return core.Catalog{}, fmt.Errorf("catalog row %d: missing id", i+1)
		}
		if name == "" {
			name = id
		}
		switch kind {
		case "project":
			projects = append(projects, core.Project{ID: id, Name: name, Status: status})
		case "stage":
			if parent == "" {
				return core.Catalog{}, fmt.Errorf("catalog row %d: stage %s has no project", i+1, id)
			}
			stages = append(stages, core.Stage{ID: id, ProjectID: parent, Name: name, Status: status})
		case "task":
			if parent == "" {
				return core.Catalog{}, fmt.Errorf("catalog row %d: task %s has no stage", i+1, id)
			}
			tasks = append(tasks, core.Task{ID: id, StageID: parent, Name: name, Status: status})
		default:
			return core.Catalog{}, fmt.Errorf("catalog row %d: unknown kind %q", i+1, kind)
		}
	}
	return core.NewCatalog(projects, stages, tasks), nil
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
