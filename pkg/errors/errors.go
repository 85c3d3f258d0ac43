// Package errors provides structured error types used across the application.
// We prefer these over raw fmt.Errorf strings to enable reliable checks with
// errors.Is / errors.As and to carry minimal context about the failure.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input/config/state provided by a caller/user.
// Keep fields minimal; add codes when we have real classification needs.
type ValidationError struct {
	Op  string // where it happened (package.Function)
	Msg string // human friendly message (no PII)
	Err error  // underlying cause (optional)
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error           { return e.Err }
func (e *ValidationError) Operation() string       { return e.Op }
func (e *ValidationError) Message() string         { return e.Msg }
func (e *ValidationError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// ExtractionError marks a result item that could not yield a comparison key
// (typically a missing URL). Policy everywhere: skip the item and keep going;
// a single bad item never fails a run.
type ExtractionError struct {
	Op  string
	Msg string
	Err error
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("extraction: %s: %s", e.Op, e.Msg)
}

func (e *ExtractionError) Unwrap() error           { return e.Err }
func (e *ExtractionError) Operation() string       { return e.Op }
func (e *ExtractionError) Message() string         { return e.Msg }
func (e *ExtractionError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewExtraction(op, msg string, err error) error {
	return &ExtractionError{Op: op, Msg: msg, Err: err}
}

// DBError represents database access/operation failures.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("db: %s: %s", e.Op, e.Msg)
}

func (e *DBError) Unwrap() error           { return e.Err }
func (e *DBError) Operation() string       { return e.Op }
func (e *DBError) Message() string         { return e.Msg }
func (e *DBError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// ExternalAPIError represents failures in external services (HTTP APIs, SDKs, etc.).
type ExternalAPIError struct {
	Op     string
	Msg    string
	Err    error
	System string // optional system name e.g. "serpapi" / "openai"
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", sys, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", sys, e.Op, e.Msg)
}

func (e *ExternalAPIError) Unwrap() error     { return e.Err }
func (e *ExternalAPIError) Operation() string { return e.Op }
func (e *ExternalAPIError) Message() string   { return e.Msg }
func (e *ExternalAPIError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg, "system": e.System}
}

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

// BizError represents a failure in our own processing logic, as opposed to
// bad input or a broken dependency. Template rendering and report assembly
// failures land here.
type BizError struct {
	Op  string
	Msg string
	Err error
}

func (e *BizError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("biz: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("biz: %s: %s", e.Op, e.Msg)
}

func (e *BizError) Unwrap() error           { return e.Err }
func (e *BizError) Operation() string       { return e.Op }
func (e *BizError) Message() string         { return e.Msg }
func (e *BizError) Context() map[string]any { return map[string]any{"op": e.Op, "msg": e.Msg} }

func NewBiz(op, msg string, err error) error { return &BizError{Op: op, Msg: msg, Err: err} }

// InsufficientDataError marks an expected small-input boundary: fewer than two
// keywords means averages are undefined. It is a marker for callers, not a
// fatal condition, and is never retried.
type InsufficientDataError struct {
	Op  string
	Msg string
	Err error
}

func (e *InsufficientDataError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("insufficient data: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("insufficient data: %s: %s", e.Op, e.Msg)
}

func (e *InsufficientDataError) Unwrap() error     { return e.Err }
func (e *InsufficientDataError) Operation() string { return e.Op }
func (e *InsufficientDataError) Message() string   { return e.Msg }
func (e *InsufficientDataError) Context() map[string]any {
	return map[string]any{"op": e.Op, "msg": e.Msg}
}

func NewInsufficientData(op, msg string, err error) error {
	return &InsufficientDataError{Op: op, Msg: msg, Err: err}
}

// IsKind helpers: allow callers to check error kind without type assertions.
// Example: if errors.Is(err, errors.ErrExternal) { ... }
var (
	ErrValidation       = &ValidationError{}
	ErrExtraction       = &ExtractionError{}
	ErrDB               = &DBError{}
	ErrExternal         = &ExternalAPIError{}
	ErrBiz              = &BizError{}
	ErrInsufficientData = &InsufficientDataError{}
)

// UserMessage extracts the human friendly message for display in UIs and API
// responses, without the op prefix and wrapped cause that Error() carries.
// Unknown error types fall back to Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var m interface{ Message() string }
	if errors.As(err, &m) {
		return m.Message()
	}
	return err.Error()
}

// Is enables errors.Is(err, ErrValidation) via errors.As semantics.
// We delegate to errors.As with the zero-value pointer of each type.
func Is(err, target error) bool {
	if err == nil || target == nil {
		return errors.Is(err, target)
	}
	switch target.(type) {
	case *ValidationError:
		var v *ValidationError
		return errors.As(err, &v)
	case *ExtractionError:
		var x *ExtractionError
		return errors.As(err, &x)
	case *DBError:
		var d *DBError
		return errors.As(err, &d)
	case *ExternalAPIError:
		var ex *ExternalAPIError
		return errors.As(err, &ex)
	case *BizError:
		var b *BizError
		return errors.As(err, &b)
	case *InsufficientDataError:
		var ins *InsufficientDataError
		return errors.As(err, &ins)
	default:
		return errors.Is(err, target)
	}
}
