// Package http serves the ledger as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger and service errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"horas/internal/core"
	"horas/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Operation string `json:"operation,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse creates an error response with the given message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ForbiddenError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, message)
}

// ValidationErrorResponse creates a 422 naming the offending field.
func ValidationErrorResponse(field, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(ErrorBody{Error: message, Field: field})
}

// OperationErrorResponse creates a 503 telling the client which step to retry.
func OperationErrorResponse(op string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusServiceUnavailable).
		Header("Retry-After", "5").
		Body(ErrorBody{Error: "storage unavailable", Operation: op, Retryable: true})
}

// errorResponse maps err to a response. Validation failures are 422 with
// their field, missing records 404, failed persistence 503 with the
// operation, anything else 500 without detail.
func errorResponse(err error) *JSONResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return ValidationErrorResponse(ve.Field, ve.Error())
	case errors.Is(err, core.ErrMissingTotal):
		return ValidationErrorResponse("totalHours", core.ErrMissingTotal.Error())
	case errors.Is(err, core.ErrMissingUser):
		return ValidationErrorResponse("user", core.ErrMissingUser.Error())
	case core.IsValidation(err):
		return ValidationErrorResponse("", err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	}
	if op, ok := services.FailedOperation(err); ok {
		return OperationErrorResponse(op)
	}
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}
