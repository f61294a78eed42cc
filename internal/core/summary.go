package core

// RangeData is the bulk set of records covering a date range.
type RangeData struct {
	WorkDays    []WorkDay    `json:"workDays"`
	Allocations []Allocation `json:"allocations"`
}

// AllocationView is an allocation with its catalog names resolved.
type AllocationView struct {
	Allocation
	ProjectName string `json:"projectName,omitempty"`
	StageName   string `json:"stageName,omitempty"`
	TaskName    string `json:"taskName,omitempty"`
}

// DayView is what a calendar cell or a day detail panel renders.
type DayView struct {
	Date             Date             `json:"date"`
	TotalHours       float64          `json:"totalHours"`
	DistributedHours float64          `json:"distributedHours"`
	Remaining        float64          `json:"remaining"`
	Status           DayStatus        `json:"status"`
	OverAllocated    bool             `json:"overAllocated"`
	InCurrentPeriod  bool             `json:"inCurrentPeriod"`
	Allocations      []AllocationView `json:"allocations"`
}

// ProjectRollupEntry aggregates one project's allocations over a range.
type ProjectRollupEntry struct {
	ProjectID        string  `json:"projectId"`
	ProjectName      string  `json:"projectName,omitempty"`
	TotalHours       float64 `json:"totalHours"`
	RecordCount      int     `json:"recordCount"`
	LastActivityDate Date    `json:"lastActivityDate"`
}

// WeekSummary aggregates the days of one week that fall inside the requested range.
type WeekSummary struct {
	Start             Date    `json:"start"`
	End               Date    `json:"end"`
	TotalHours        float64 `json:"totalHours"`
	DistributedHours  float64 `json:"distributedHours"`
	CompleteDays      int     `json:"completeDays"`
	PartialDays       int     `json:"partialDays"`
	OverAllocatedDays int     `json:"overAllocatedDays"`
}

// PeriodSummary is a compact overview of a range, used for dashboard cards.
type PeriodSummary struct {
	Start             Date    `json:"start"`
	End               Date    `json:"end"`
	TotalHours        float64 `json:"totalHours"`
	DistributedHours  float64 `json:"distributedHours"`
	Remaining         float64 `json:"remaining"`
	RecordedDays      int     `json:"recordedDays"`
	NoneDays          int     `json:"noneDays"`
	PartialDays       int     `json:"partialDays"`
	CompleteDays      int     `json:"completeDays"`
	OverAllocatedDays int     `json:"overAllocatedDays"`
}
