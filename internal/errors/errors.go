// Package errors provides domain-specific error types and sentinel errors
// for the knowledge-base lookup pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNoMatch indicates no knowledge-base row matched the input text.
	ErrNoMatch = errors.New("no matching row")

	// ErrMissingField indicates a row lacks a field its response type requires.
	ErrMissingField = errors.New("missing required field")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrSnapshotStale indicates a table snapshot has exceeded its TTL.
	ErrSnapshotStale = errors.New("snapshot stale")

	// ErrNotFound indicates a requested object or row set was not found.
	ErrNotFound = errors.New("resource not found")
)

// PatternError reports a row whose keyword failed to compile as a regexp.
// Such rows are skipped by the resolver rather than aborting the scan.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("malformed keyword pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NewPatternError creates a new pattern error.
func NewPatternError(pattern string, err error) *PatternError {
	return &PatternError{Pattern: pattern, Err: err}
}

// TableReadError reports a transient failure while fetching rows for a table.
type TableReadError struct {
	Table string
	Err   error
}

func (e *TableReadError) Error() string {
	return fmt.Sprintf("read table %q: %v", e.Table, e.Err)
}

func (e *TableReadError) Unwrap() error {
	return e.Err
}

// NewTableReadError creates a new table read error.
func NewTableReadError(table string, err error) *TableReadError {
	return &TableReadError{Table: table, Err: err}
}

// FetchError represents an HTTP fetch failure with status context.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error (url=%s, status=%d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error (url=%s): %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error.
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{URL: url, StatusCode: statusCode, Err: err}
}
