package http

import (
	"net/http"
	"strings"

	"horas/internal/core"
	"horas/internal/services"
)

// rangeKey resolves the user and the [start, end] range of a read request.
func (s *Server) rangeKey(r *http.Request) (string, core.Date, core.Date, error) {
	userID, err := targetUser(r, false)
	if err != nil {
		return "", core.Date{}, core.Date{}, err
	}
	start, end, err := ParseRangeParams(r.URL.Query(), s.now())
	if err != nil {
		return "", core.Date{}, core.Date{}, err
	}
	return userID, start, end, nil
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	userID, start, end, err := s.rangeKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := ParseStatusFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	views, err := s.ledger.GetRangeView(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	days := make([]dayResponse, 0, len(views))
	for _, v := range views {
		if status != "" && v.Status != status {
			continue
		}
		days = append(days, newDayResponse(v))
	}
	NewJSONResponse().Body(days).Write(w)
}

func (s *Server) handleMonthCalendar(w http.ResponseWriter, r *http.Request) {
	userID, err := targetUser(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCalendar(w, r, userID, core.MonthPeriod(params.Year, params.Month))
}

func (s *Server) handleWeekCalendar(w http.ResponseWriter, r *http.Request) {
	userID, err := targetUser(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	anchor := core.DateOf(s.now())
	if raw := r.URL.Query().Get("date"); raw != "" {
		if anchor, err = ParseDateValue("date", raw); err != nil {
			writeError(w, err)
			return
		}
	}
	p, err := services.ResolvePeriod(services.PeriodWeek, anchor, s.ledger.WeekStart())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCalendar(w, r, userID, p)
}

func (s *Server) writeCalendar(w http.ResponseWriter, r *http.Request, userID string, p core.Period) {
	days, err := s.ledger.GetCalendar(r.Context(), userID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(calendarResponse{
		Start:     p.Start,
		End:       p.End,
		WeekStart: strings.ToLower(s.ledger.WeekStart().String()),
		Days:      days,
	}).Write(w)
}

func (s *Server) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	userID, start, end, err := s.rangeKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filter := core.ProjectFilter{
		ProjectID: sanitizeInput(r.URL.Query().Get("project")),
		NameQuery: sanitizeInput(r.URL.Query().Get("q")),
	}
	report, err := s.ledger.GetProjectRollup(r.Context(), userID, start, end, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

func (s *Server) handleWeekReport(w http.ResponseWriter, r *http.Request) {
	userID, start, end, err := s.rangeKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	weeks, err := s.ledger.GetWeekRollup(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(weeks).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, start, end, err := s.rangeKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.ledger.GetSummary(r.Context(), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID, start, end, err := s.rangeKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	term := sanitizeInput(r.URL.Query().Get("q"))
	if term == "" {
		ValidationErrorResponse("q", "search term is required").Write(w)
		return
	}
	results, err := s.ledger.SearchAllocations(r.Context(), userID, start, end, term)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(results).Write(w)
}
