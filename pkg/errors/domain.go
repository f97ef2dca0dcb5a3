package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Sentinel errors for the pipeline taxonomy. Every typed error below is
// marked with its sentinel and also matches it through its own Is method,
// so cockroach and standard library errors.Is agree.
var (
	ErrDataAccess          = New("data access error")
	ErrSchema              = New("schema error")
	ErrUnsupportedTaskType = New("unsupported task type")
	ErrUnsupportedModel    = New("unsupported model")
	ErrModelNotFound       = New("model not found")
	ErrTrackingBackend     = New("tracking backend error")
)

// DataAccessError reports an unreadable or malformed input file.
type DataAccessError struct {
	Path string
	Err  error
}

func (e *DataAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot read dataset %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot read dataset %q", e.Path)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// Is matches ErrDataAccess for callers using the standard library errors.Is.
func (e *DataAccessError) Is(target error) bool { return target == ErrDataAccess }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DataAccessError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "DataAccessError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewDataAccessError wraps err for the file at path.
func NewDataAccessError(path string, err error) error {
	return errors.Mark(errors.WithStack(&DataAccessError{Path: path, Err: err}), ErrDataAccess)
}

// SchemaError reports a dataset whose shape does not fit the request:
// a missing target column, a column-count mismatch, an unencodable value.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

// Is matches ErrSchema for callers using the standard library errors.Is.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).Str("reason", e.Reason).Str("type", "SchemaError")
}

// NewSchemaError returns a SchemaError for column.
func NewSchemaError(column, reason string) error {
	return errors.Mark(errors.WithStack(&SchemaError{Column: column, Reason: reason}), ErrSchema)
}

// UnsupportedTaskTypeError is returned for task types other than
// classification and regression.
type UnsupportedTaskTypeError struct {
	TaskType string
}

func (e *UnsupportedTaskTypeError) Error() string {
	return fmt.Sprintf("unsupported task type %q: expected classification or regression", e.TaskType)
}

// Is matches ErrUnsupportedTaskType for callers using the standard library errors.Is.
func (e *UnsupportedTaskTypeError) Is(target error) bool { return target == ErrUnsupportedTaskType }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnsupportedTaskTypeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("task_type", e.TaskType).Str("type", "UnsupportedTaskTypeError")
}

// NewUnsupportedTaskTypeError returns an UnsupportedTaskTypeError.
func NewUnsupportedTaskTypeError(taskType string) error {
	return errors.Mark(errors.WithStack(&UnsupportedTaskTypeError{TaskType: taskType}), ErrUnsupportedTaskType)
}

// UnsupportedModelError is returned when a candidate has no known
// hyperparameter space.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q: no hyperparameter space registered", e.Model)
}

// Is matches ErrUnsupportedModel for callers using the standard library errors.Is.
func (e *UnsupportedModelError) Is(target error) bool { return target == ErrUnsupportedModel }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnsupportedModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).Str("type", "UnsupportedModelError")
}

// NewUnsupportedModelError returns an UnsupportedModelError.
func NewUnsupportedModelError(model string) error {
	return errors.Mark(errors.WithStack(&UnsupportedModelError{Model: model}), ErrUnsupportedModel)
}

// ModelNotFoundError is returned by inference when no artifact exists at Key.
type ModelNotFoundError struct {
	Key string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Key)
}

// Is matches ErrModelNotFound for callers using the standard library errors.Is.
func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ModelNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("key", e.Key).Str("type", "ModelNotFoundError")
}

// NewModelNotFoundError returns a ModelNotFoundError.
func NewModelNotFoundError(key string) error {
	return errors.Mark(errors.WithStack(&ModelNotFoundError{Key: key}), ErrModelNotFound)
}

// TrackingBackendError wraps a failed experiment-tracking call. It is logged,
// never returned from a pipeline run.
type TrackingBackendError struct {
	Op  string
	Err error
}

func (e *TrackingBackendError) Error() string {
	return fmt.Sprintf("tracking backend: %s: %v", e.Op, e.Err)
}

func (e *TrackingBackendError) Unwrap() error { return e.Err }

// Is matches ErrTrackingBackend for callers using the standard library errors.Is.
func (e *TrackingBackendError) Is(target error) bool { return target == ErrTrackingBackend }

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *TrackingBackendError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).Str("type", "TrackingBackendError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewTrackingBackendError wraps err from the tracker operation op.
func NewTrackingBackendError(op string, err error) error {
	return errors.Mark(errors.WithStack(&TrackingBackendError{Op: op, Err: err}), ErrTrackingBackend)
}
