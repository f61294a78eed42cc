package http

import (
	"net/http"

	"horas/internal/core"
	applog "horas/internal/log"
	"horas/internal/services"
)

type totalRequest struct {
	Hours string `json:"hours"`
}

type allocationsRequest struct {
	Allocations []services.AllocationDraft `json:"allocations"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.ledger.Catalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

func (s *Server) handleProjectStages(w http.ResponseWriter, r *http.Request) {
	cat, err := s.ledger.Catalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, ok := cat.Project(id); !ok {
		NotFoundError("unknown project " + id).Write(w)
		return
	}
	stages := cat.StagesOf(id)
	if stages == nil {
		stages = []core.Stage{}
	}
	NewJSONResponse().Body(stages).Write(w)
}

func (s *Server) handleStageTasks(w http.ResponseWriter, r *http.Request) {
	cat, err := s.ledger.Catalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if _, ok := cat.Stage(id); !ok {
		NotFoundError("unknown stage " + id).Write(w)
		return
	}
	tasks := cat.TasksOf(id)
	if tasks == nil {
		tasks = []core.Task{}
	}
	NewJSONResponse().Body(tasks).Write(w)
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	userID, date, err := s.dayKey(r, false)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.ledger.GetDayView(r.Context(), userID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	NewJSONResponse().Body(newDayResponse(view)).Write(w)
}

func (s *Server) handlePutTotal(w http.ResponseWriter, r *http.Request) {
	userID, date, err := s.dayKey(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	var req totalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx := r.Context()
	ledger, err := s.ledger.OpenDay(ctx, userID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.ledger.RecordTotalHours(ctx, ledger, req.Hours)
	if err != nil {
		writeError(w, err)
		return
	}

	rec := ledger.Reconcile()
	applog.FromContext(ctx).InfoContext(ctx, "Day total saved", applog.NewFields().
		WithComponent(applog.ComponentLedger).
		WithDay(userID, date.String()).
		WithReconciliation(rec.TotalHours, rec.DistributedHours, string(rec.Status)).
		ToSlice()...)
	NewJSONResponse().Body(result).Write(w)
}

func (s *Server) handlePutAllocations(w http.ResponseWriter, r *http.Request) {
	userID, date, err := s.dayKey(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	var req allocationsRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inputs, err := services.ParseDrafts(req.Allocations)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	ledger, err := s.ledger.OpenDay(ctx, userID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.ledger.RecordAllocations(ctx, ledger, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Day allocations saved", applog.NewFields().
		WithComponent(applog.ComponentLedger).
		WithDay(userID, date.String()).
		WithReconciliation(ledger.TotalHours(), result.DistributedHours, string(result.Status)).
		ToSlice()...)
	NewJSONResponse().Body(result).Write(w)
}

func (s *Server) dayKey(r *http.Request, write bool) (string, core.Date, error) {
	userID, err := targetUser(r, write)
	if err != nil {
		return "", core.Date{}, err
	}
	date, err := ParseDateValue("date", r.PathValue("date"))
	if err != nil {
		return "", core.Date{}, err
	}
	return userID, date, nil
}
