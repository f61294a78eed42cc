package core

import "strings"

// Catalog is a read-only snapshot of the project/stage/task hierarchy.
// Build it with NewCatalog so lookups are indexed.
type Catalog struct {
	Projects []Project `json:"projects"`
	Stages   []Stage   `json:"stages"`
	Tasks    []Task    `json:"tasks"`

	projects map[string]Project
	stages   map[string]Stage
	tasks    map[string]Task
}

func NewCatalog(projects []Project, stages []Stage, tasks []Task) Catalog {
	c := Catalog{
		Projects: projects,
		Stages:   stages,
		Tasks:    tasks,
		projects: make(map[string]Project, len(projects)),
		stages:   make(map[string]Stage, len(stages)),
		tasks:    make(map[string]Task, len(tasks)),
	}
	for _, p := range projects {
		c.projects[p.ID] = p
	}
	for _, s := range stages {
		c.stages[s.ID] = s
	}
	for _, t := range tasks {
		c.tasks[t.ID] = t
	}
	return c
}

func (c Catalog) Project(id string) (Project, bool) {
	p, ok := c.projects[id]
	return p, ok
}

func (c Catalog) Stage(id string) (Stage, bool) {
	s, ok := c.stages[id]
	return s, ok
}

func (c Catalog) Task(id string) (Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

// StagesOf returns the stages whose parent is projectID, in catalog order.
func (c Catalog) StagesOf(projectID string) []Stage {
	var out []Stage
	for _, s := range c.Stages {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out
}

// TasksOf returns the tasks whose parent is stageID, in catalog order.
func (c Catalog) TasksOf(stageID string) []Task {
	var out []Task
	for _, t := range c.Tasks {
		if t.StageID == stageID {
			out = append(out, t)
		}
	}
	return out
}

// ProjectName returns the catalog name for id, or id itself when unknown.
func (c Catalog) ProjectName(id string) string {
	if p, ok := c.projects[id]; ok && p.Name != "" {
		return p.Name
	}
	return id
}

// CheckHierarchy verifies stage/task parentage of a (project, stage, task) triple.
// Structural rules apply always; catalog membership is checked only for a
// non-empty catalog.
func (c Catalog) CheckHierarchy(projectID, stageID, taskID string) error {
	if taskID != "" && stageID == "" {
		return fieldError("taskId", ErrInvalidHierarchy, "task requires a stage")
	}
	if stageID != "" && projectID == "" {
		return fieldError("stageId", ErrInvalidHierarchy, "stage requires a project")
	}
	if len(c.projects) == 0 {
		return nil
	}
	if projectID != "" {
		if _, ok := c.projects[projectID]; !ok {
			return fieldError("projectId", ErrInvalidHierarchy, "unknown project "+projectID)
		}
	}
	if stageID != "" {
		s, ok := c.stages[stageID]
		if !ok {
			return fieldError("stageId", ErrInvalidHierarchy, "unknown stage "+stageID)
		}
		if s.ProjectID != projectID {
			return fieldError("stageId", ErrInvalidHierarchy, "stage "+stageID+" does not belong to project "+projectID)
		}
	}
	if taskID != "" {
		t, ok := c.tasks[taskID]
		if !ok {
			return fieldError("taskId", ErrInvalidHierarchy, "unknown task "+taskID)
		}
		if t.StageID != stageID {
			return fieldError("taskId", ErrInvalidHierarchy, "task "+taskID+" does not belong to stage "+stageID)
		}
	}
	return nil
}

// MatchProjects returns the ids of projects whose name contains query, ignoring case.
func (c Catalog) MatchProjects(query string) map[string]bool {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make(map[string]bool)
	for _, p := range c.Projects {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out[p.ID] = true
		}
	}
	return out
}
