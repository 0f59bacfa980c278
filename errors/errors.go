package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified stagekit error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Segment names the stage or hook the error was raised in.
	Segment string `json:"segment,omitempty"`
	// Fatal indicates the error stops the stage.
	Fatal bool `json:"fatal"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Segment != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Segment)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.New(ErrCodeTaskFailure, "")) matches any task failure.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithSegment sets the segment name and returns the receiver.
func (e *AppError) WithSegment(segment string) *AppError {
	e.Segment = segment
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic fatal detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Fatal:   IsFatalCode(code),
	}
}

// --- Stage Error Constructors ---

// TaskFailure wraps the error a transform or hook resolved with.
func TaskFailure(segment string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTaskFailure, Message: "task resolved with an error",
		Segment: segment, Fatal: true, Cause: cause,
	}
}

// ProtocolViolation reports a broken completion contract.
func ProtocolViolation(segment, reason string) *AppError {
	return &AppError{
		Code: ErrCodeProtocolViolation, Message: reason,
		Segment: segment, Fatal: true,
	}
}

// StageClosed reports input offered to a stage that no longer accepts it.
func StageClosed(segment string) *AppError {
	return &AppError{
		Code: ErrCodeStageClosed, Message: "stage no longer accepts input",
		Segment: segment, Fatal: false,
	}
}

// InvalidConfig reports an out-of-range configuration value.
func InvalidConfig(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("Invalid configuration: %s", reason),
		Fatal: false, Details: details,
	}
}

// Validation creates a new AppError for struct validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: message, Fatal: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		Fatal: false, Details: map[string]any{"field": field},
	}
}

// Canceled wraps a context error returned to a caller.
func Canceled(operation string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: fmt.Sprintf("%s canceled", operation),
		Fatal: false, Cause: cause,
		Details: map[string]any{"operation": operation},
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Fatal: true, Cause: cause,
	}
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsTaskFailure reports whether err is a TASK_FAILURE.
func IsTaskFailure(err error) bool { return HasCode(err, ErrCodeTaskFailure) }

// IsProtocolViolation reports whether err is a PROTOCOL_VIOLATION.
func IsProtocolViolation(err error) bool { return HasCode(err, ErrCodeProtocolViolation) }
