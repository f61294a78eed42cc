package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	StatusNone     DayStatus = "none"
	StatusPartial  DayStatus = "partial"
	StatusComplete DayStatus = "complete"
)

const (
	RoleColaborador   Role = "colaborador"
	RoleGestor        Role = "gestor"
	RoleAdministrador Role = "administrador"
)

const (
	CatalogActive   CatalogStatus = "active"
	CatalogArchived CatalogStatus = "archived"
)

const dateLayout = "2006-01-02"

type (
	DayStatus     string
	Role          string
	CatalogStatus string

	// Date is a calendar date without a time component, always stored at UTC midnight.
	Date struct {
		time.Time
	}

	WorkDay struct {
		ID         string  `json:"id,omitempty"`
		UserID     string  `json:"userId"`
		Date       Date    `json:"date"`
		TotalHours float64 `json:"totalHours"`
	}

	Allocation struct {
		ID          string  `json:"id"`
		UserID      string  `json:"userId"`
		Date        Date    `json:"date"`
		ProjectID   string  `json:"projectId"`
		StageID     string  `json:"stageId,omitempty"`
		TaskID      string  `json:"taskId,omitempty"`
		Hours       float64 `json:"hours"`
		Description string  `json:"description,omitempty"`
	}

	Project struct {
		ID     string        `json:"id"`
		Name   string        `json:"name"`
		Status CatalogStatus `json:"status,omitempty"`
	}

	Stage struct {
		ID        string        `json:"id"`
		ProjectID string        `json:"projectId"`
		Name      string        `json:"name"`
		Status    CatalogStatus `json:"status,omitempty"`
	}

	Task struct {
		ID      string        `json:"id"`
		StageID string        `json:"stageId"`
		Name    string        `json:"name"`
		Status  CatalogStatus `json:"status,omitempty"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String formats the date as YYYY-MM-DD; the zero date formats as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n calendar days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// Within reports whether d lies in the inclusive range [start, end].
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (s DayStatus) Valid() bool {
	switch s {
	case StatusNone, StatusPartial, StatusComplete:
		return true
	}
	return false
}

// ParseRole maps a role claim to a Role, defaulting to colaborador.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleGestor:
		return RoleGestor
	case RoleAdministrador:
		return RoleAdministrador
	default:
		return RoleColaborador
	}
}

// CanViewOthers reports whether the role may read other users' ledgers.
func (r Role) CanViewOthers() bool {
	return r == RoleGestor || r == RoleAdministrador
}

func (w WorkDay) Validate() error {
	if strings.TrimSpace(w.UserID) == "" {
		return ErrMissingUser
	}
	if err := w.Date.Validate(); err != nil {
		return err
	}
	if w.TotalHours < 0 {
		return fieldError("totalHours", ErrInvalidDuration, "must not be negative")
	}
	return nil
}

// Key identifies the owning (user, date) of a record.
func (w WorkDay) Key() string {
	return w.UserID + "|" + w.Date.String()
}

func (a Allocation) Key() string {
	return a.UserID + "|" + a.Date.String()
}
