package ingestor

import (
	"errors"
	"fmt"
)

// DataError reports staging data the ingestion refuses to apply.
//
// Data errors are detected before main is mutated. The surrounding
// transaction is rolled back, so nothing of the group is applied.
type DataError struct {
	// Code identifies the error category.
	Code DataErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the main table of the failed ingestion.
	Table string

	// Details contains additional context, e.g. the offending count.
	Details map[string]string
}

// DataErrorCode categorizes data errors.
type DataErrorCode string

const (
	// ErrCodeDuplicateRows indicates staging holds more than one row per key
	// under a fail-on-duplicates policy.
	ErrCodeDuplicateRows DataErrorCode = "DUPLICATE_ROWS"

	// ErrCodeEmptyBatch indicates empty staging under FailEmptyBatch.
	ErrCodeEmptyBatch DataErrorCode = "EMPTY_BATCH"
)

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicateError reports whether err is a duplicate rows error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateError(err error) bool {
	var de *DataError
	if errors.As(err, &de) {
		return de.Code == ErrCodeDuplicateRows
	}
	return false
}

// IsEmptyBatchError reports whether err is an empty batch error.
func IsEmptyBatchError(err error) bool {
	var de *DataError
	if errors.As(err, &de) {
		return de.Code == ErrCodeEmptyBatch
	}
	return false
}
