// Package domain defines core types, ports, and errors for CSV ingestion.
package domain

import "fmt"

// BadPayloadError indicates a notification that cannot be processed as sent.
// Redelivering the same notification will fail the same way.
type BadPayloadError struct {
	Message string
}

func (e *BadPayloadError) Error() string { return e.Message }

// ConfigurationError indicates the deployment is missing required settings.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// FatalKind classifies failures that happen after a notification passed
// validation and filtering.
type FatalKind string

// Fatal failure kinds.
const (
	KindIngestParse    FatalKind = "ingest_parse"
	KindWarehouseQuery FatalKind = "warehouse_query"
	KindLoadJob        FatalKind = "load_job"
)

// FatalError is a downstream failure that must be surfaced to the delivery
// layer so it can apply its own retry policy.
type FatalError struct {
	Kind FatalKind
	Err  error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error { return e.Err }

// ErrBadPayload creates a BadPayloadError with a formatted message.
func ErrBadPayload(format string, args ...interface{}) *BadPayloadError {
	return &BadPayloadError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// Fatal wraps err as a FatalError of the given kind.
func Fatal(kind FatalKind, err error) *FatalError {
	return &FatalError{Kind: kind, Err: err}
}
