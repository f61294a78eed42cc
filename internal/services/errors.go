package services

import (
	"errors"
	"fmt"
)

// Operations reported by OperationError.
const (
	OpSavingTotal       = "saving total"
	OpSavingAllocations = "saving allocations"
	OpFetchingRange     = "fetching range"
	OpFetchingDay       = "fetching day"
	OpFetchingCatalog   = "fetching catalog"
)

// OperationError marks a persistence failure with the operation that was in
// flight, so a caller can retry that step alone.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}

// FailedOperation returns the operation name carried by err, if any.
func FailedOperation(err error) (string, bool) {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Op, true
	}
	return "", false
}
