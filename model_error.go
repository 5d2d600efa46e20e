package optionchain

import (
	"errors"
	"fmt"
	"time"
)

// RecordError is a structurally invalid record. It is logged with its context
// and the record is dropped.
type RecordError struct {
	Line     int
	Field    string
	Expected string
	Actual   string
	Err      error
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("line %d: %s expected %s, got %q", e.Line, e.Field, e.Expected, e.Actual)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// SkipError is a well-formed record outside the configured interest. It is
// dropped without logging.
type SkipError struct {
	Line   int
	Field  string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("line %d: skipped on %s: %s", e.Line, e.Field, e.Reason)
}

// DayError aborts one day's task. Other days keep running.
type DayError struct {
	File string
	Day  time.Time
	Line int
	Err  error
}

func (e *DayError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("day %s (%s) failed at row %d: %v", e.Day.Format(dayLayout), e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("day %s (%s) failed: %v", e.Day.Format(dayLayout), e.File, e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}

func newRecordError(line int, field CboeField, expected, actual string, err error) *RecordError {
	return &RecordError{Line: line, Field: field.String(), Expected: expected, Actual: actual, Err: err}
}

func newSkip(line int, field CboeField, format string, args ...any) *SkipError {
	return &SkipError{Line: line, Field: field.String(), Reason: fmt.Sprintf(format, args...)}
}

func IsSkip(err error) bool {
	var s *SkipError
	return errors.As(err, &s)
}

func IsRecordError(err error) bool {
	var r *RecordError
	return errors.As(err, &r)
}
