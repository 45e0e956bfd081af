// Package errors provides standardized error handling for texforge.
// It implements structured error types with proper wrapping and classification
// following Go 1.20+ error handling best practices.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind enumerates the error categories a ConversionError can carry.
// Callers branch on Kind instead of matching error message strings.
type Kind string

const (
	KindCapacityExceeded    Kind = "CapacityExceeded"
	KindNotFound            Kind = "NotFound"
	KindNotReady            Kind = "NotReady"
	KindUnsafeArchive       Kind = "UnsafeArchive"
	KindNoMainSource        Kind = "NoMainSource"
	KindCompilerFailure     Kind = "CompilerFailure"
	KindConverterFailure    Kind = "ConverterFailure"
	KindPostProcessingError Kind = "PostProcessingFailure"
	KindTimeoutExceeded     Kind = "TimeoutExceeded"
	KindCancelled           Kind = "Cancelled"
	KindInternal            Kind = "Internal"
)

// Sentinel errors for common error conditions
var (
	// Job-related errors
	ErrJobNotFound       = errors.New("job not found")
	ErrJobAlreadyExists  = errors.New("job already exists")
	ErrJobNotRunning     = errors.New("job is not running")
	ErrJobAlreadyRunning = errors.New("job is already running")
	ErrInvalidJobSpec    = errors.New("invalid job specification")
	ErrJobTimeout        = errors.New("job execution timeout")
	ErrResultNotReady    = errors.New("conversion result not ready")
	ErrCapacityExceeded  = errors.New("admission capacity exceeded")

	// Archive-related errors
	ErrUnsafeArchive   = errors.New("archive rejected by safety policy")
	ErrArchiveNotFound = errors.New("archive not found")

	// Project/source-related errors
	ErrNoMainSource    = errors.New("no main source file found")
	ErrInvalidProject  = errors.New("invalid project structure")

	// Stage-related errors
	ErrStageFailed        = errors.New("stage operation failed")
	ErrCompilerFailed     = errors.New("compiler invocation failed")
	ErrConverterFailed    = errors.New("converter invocation failed")
	ErrPostProcessFailed  = errors.New("post-processing failed")

	// System-related errors
	ErrPermissionDenied    = errors.New("permission denied")
	ErrTimeout             = errors.New("operation timed out")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrFilesystemFailed    = errors.New("filesystem operation failed")
)

// ConversionError is the error surfaced to external callers of the
// Orchestrator (Submit/Status/Cancel/Result). ErrorKind classifies the
// failure into a closed set of values so callers can branch on failure
// category without string matching.
type ConversionError struct {
	ErrorKind Kind
	JobID     string
	Stage     string
	Message   string
	Err       error
}

func (e *ConversionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: job %s: stage %s: %s", e.ErrorKind, e.JobID, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: job %s: %s", e.ErrorKind, e.JobID, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewConversionError builds a ConversionError, optionally wrapping an
// underlying cause.
func NewConversionError(kind Kind, jobID, stage, message string, cause error) *ConversionError {
	return &ConversionError{ErrorKind: kind, JobID: jobID, Stage: stage, Message: message, Err: cause}
}

// JobError represents an error related to a specific job
type JobError struct {
	JobID     string
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: operation %s: %v", e.JobID, e.Operation, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// StageError represents an error produced by a pipeline stage
type StageError struct {
	Stage     string
	Operation string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: operation %s: %v", e.Stage, e.Operation, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ArchiveError represents an error related to archive extraction
type ArchiveError struct {
	Path      string
	Operation string
	Err       error
}

func (e *ArchiveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("archive: operation %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("archive %s: operation %s: %v", e.Path, e.Operation, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// FilesystemError represents an error related to filesystem operations
type FilesystemError struct {
	Path      string
	Operation string
	Err       error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem %s: operation %s: %v", e.Path, e.Operation, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Component string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Component, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors
func WrapJobError(jobID, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &JobError{JobID: jobID, Operation: operation, Err: err}
}

func WrapStageError(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Operation: operation, Err: err}
}

func WrapArchiveError(path, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ArchiveError{Path: path, Operation: operation, Err: err}
}

func WrapFilesystemError(path, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &FilesystemError{Path: path, Operation: operation, Err: err}
}

func WrapConfigError(component, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Component: component, Field: field, Err: err}
}

// Error classification functions
func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

func IsArchiveError(err error) bool {
	var ae *ArchiveError
	return errors.As(err, &ae)
}

func IsFilesystemError(err error) bool {
	var fe *FilesystemError
	return errors.As(err, &fe)
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// GetConversionErrorKind extracts the Kind carried by a wrapped
// ConversionError, if present.
func GetConversionErrorKind(err error) (Kind, bool) {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.ErrorKind, true
	}
	return "", false
}

// Specific error type checks
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrJobTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrArchiveNotFound)
}

func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// Error extraction helpers
func GetJobID(err error) (string, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je.JobID, true
	}
	return "", false
}

func GetStage(err error) (string, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Convenience functions for common error patterns
func NewJobNotFoundError(jobID string) error {
	return WrapJobError(jobID, "lookup", ErrJobNotFound)
}

func NewFilesystemError(path, operation string, err error) error {
	return WrapFilesystemError(path, operation, fmt.Errorf("%w: %v", ErrFilesystemFailed, err))
}

func NewConfigError(component, field string, err error) error {
	return WrapConfigError(component, field, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
}

// Context-aware error handling
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// JoinErrors combines multiple errors into a single error
// Similar to errors.Join in Go 1.20+
func JoinErrors(errs ...error) error {
	var validErrs []error
	for _, err := range errs {
		if err != nil {
			validErrs = append(validErrs, err)
		}
	}

	if len(validErrs) == 0 {
		return nil
	}
	if len(validErrs) == 1 {
		return validErrs[0]
	}

	return &multiError{errors: validErrs}
}

// multiError represents multiple errors
type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}
	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msg := e.errors[0].Error()
	for _, err := range e.errors[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

// Is implements error comparison for multiError
func (e *multiError) Is(target error) bool {
	for _, err := range e.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As implements error conversion for multiError
func (e *multiError) As(target interface{}) bool {
	for _, err := range e.errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
