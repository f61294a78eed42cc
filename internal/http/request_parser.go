// Package http serves the ledger as a JSON API.
//
// This file implements utilities for reading path, query and body
// parameters. Every parse failure comes back as a *core.ValidationError
// naming the parameter, so handlers can pass it straight to errorResponse.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"horas/internal/core"
)

const maxBodyBytes = 64 << 10

func invalidParam(field string, err error, detail string) error {
	return &core.ValidationError{Field: field, Err: err, Detail: detail}
}

// ParseDateValue parses a YYYY-MM-DD value, attributing failures to field.
func ParseDateValue(field, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, invalidParam(field, core.ErrInvalidDate, "required")
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, invalidParam(field, core.ErrInvalidDate, fmt.Sprintf("%q is not YYYY-MM-DD", value))
	}
	return d, nil
}

// ParseRangeParams reads start and end from query. When both are absent the
// month containing now is used; one without the other is an error.
func ParseRangeParams(query url.Values, now time.Time) (start, end core.Date, err error) {
	rawStart, rawEnd := query.Get("start"), query.Get("end")
	if rawStart == "" && rawEnd == "" {
		today := core.DateOf(now)
		p := core.MonthPeriod(today.Year(), today.Month())
		return p.Start, p.End, nil
	}
	if start, err = ParseDateValue("start", rawStart); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if end, err = ParseDateValue("end", rawEnd); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if end.Before(start.Time) {
		return core.Date{}, core.Date{}, invalidParam("end", core.ErrInvalidDate, "end is before start")
	}
	return start, end, nil
}

var errUnknownStatus = errors.New("unknown status")

// ParseStatusFilter reads the optional status parameter. An empty result
// means no filter.
func ParseStatusFilter(query url.Values) (core.DayStatus, error) {
	raw := strings.ToLower(strings.TrimSpace(query.Get("status")))
	if raw == "" {
		return "", nil
	}
	status := core.DayStatus(raw)
	if !status.Valid() {
		return "", invalidParam("status", errUnknownStatus, fmt.Sprintf("%q is not none, partial or complete", raw))
	}
	return status, nil
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams extracts year and month from query parameters, using the
// month of now for anything missing.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: now.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return params, invalidParam("year", core.ErrInvalidDate, fmt.Sprintf("%q is not a year", v))
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return params, invalidParam("month", core.ErrInvalidDate, fmt.Sprintf("%q is not a month", v))
		}
		params.Month = time.Month(m)
	}
	return params, nil
}

// DecodeJSON reads a JSON body of at most maxBodyBytes into v, rejecting
// unknown fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body larger than %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return fmt.Errorf("malformed request body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
