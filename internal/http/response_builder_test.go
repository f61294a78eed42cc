package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"horas/internal/core"
	"horas/internal/services"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"saved": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Header().Get("Content-Type") != "application/json" || w.Header().Get("X-Custom") != "value" {
		t.Errorf("unexpected headers %v", w.Header())
	}
	if w.Body.String() != "{\"saved\":2}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponseMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantField string
		wantOp    string
	}{
		{
			name:      "duration",
			err:       &core.ValidationError{Field: "duration", Err: core.ErrInvalidDuration},
			wantCode:  http.StatusUnprocessableEntity,
			wantField: "duration",
		},
		{
			name:      "missing total",
			err:       fmt.Errorf("prepare save: %w", core.ErrMissingTotal),
			wantCode:  http.StatusUnprocessableEntity,
			wantField: "totalHours",
		},
		{
			name:     "not found",
			err:      core.ErrNotFound,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "storage failure",
			err:      &services.OperationError{Op: services.OpSavingAllocations, Err: errors.New("disk full")},
			wantCode: http.StatusServiceUnavailable,
			wantOp:   services.OpSavingAllocations,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorResponse(tt.err).Write(w)
			if w.Code != tt.wantCode {
				t.Fatalf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Field != tt.wantField || body.Operation != tt.wantOp {
				t.Errorf("unexpected body %+v", body)
			}
			if tt.wantOp != "" && !body.Retryable {
				t.Error("operation errors must be retryable")
			}
			if tt.wantCode == http.StatusInternalServerError && body.Error != "internal error" {
				t.Errorf("internal errors must not leak: %q", body.Error)
			}
		})
	}
}
