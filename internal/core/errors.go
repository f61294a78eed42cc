package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidHierarchy = errors.New("invalid hierarchy")
	ErrMissingTotal     = errors.New("missing total hours")
	ErrNotFound         = errors.New("not found")
	ErrInvalidDate      = errors.New("invalid date")
	ErrMissingUser      = errors.New("missing user id")

	ErrDuplicateAllocation = errors.New("duplicate allocation id")
)

// ValidationError carries the field a validation failure refers to so callers
// can render it next to the offending input.
type ValidationError struct {
	Field  string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error, detail string) error {
	return &ValidationError{Field: field, Err: err, Detail: detail}
}

// IsValidation reports whether err is one of the ledger's validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidHierarchy) ||
		errors.Is(err, ErrMissingTotal) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrMissingUser) ||
		errors.Is(err, ErrDuplicateAllocation)
}
