package http

import (
	"errors"
	"net/http"

	"horas/internal/core"
	"horas/internal/middleware/auth"
)

var errForbidden = errors.New("not allowed to access this user's ledger")

// targetUser resolves whose ledger a request addresses: the caller's own,
// or the ?user= one when the caller's role allows it. Writing to someone
// else's days requires the administrator role.
func targetUser(r *http.Request, write bool) (string, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok || id.UserID == "" {
		return "", core.ErrMissingUser
	}
	requested := sanitizeInput(r.URL.Query().Get("user"))
	if requested == "" || requested == id.UserID {
		return id.UserID, nil
	}
	if !id.CanActFor(requested) || (write && id.Role != core.RoleAdministrador) {
		return "", errForbidden
	}
	return requested, nil
}

// writeError renders err; authorization failures become 403.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errForbidden) {
		ForbiddenError(errForbidden.Error()).Write(w)
		return
	}
	errorResponse(err).Write(w)
}

type dayResponse struct {
	core.DayView
	TotalDisplay       string  `json:"totalDisplay"`
	DistributedDisplay string  `json:"distributedDisplay"`
	RemainingDisplay   string  `json:"remainingDisplay"`
	Difference         float64 `json:"difference"`
}

func newDayResponse(v core.DayView) dayResponse {
	diff := v.Remaining
	if diff < 0 {
		diff = -diff
	}
	return dayResponse{
		DayView:            v,
		TotalDisplay:       core.FormatHours(v.TotalHours),
		DistributedDisplay: core.FormatHours(v.DistributedHours),
		RemainingDisplay:   core.FormatHours(v.Remaining),
		Difference:         diff,
	}
}

type calendarResponse struct {
	Start     core.Date      `json:"start"`
	End       core.Date      `json:"end"`
	WeekStart string         `json:"weekStart"`
	Days      []core.DayView `json:"days"`
}
