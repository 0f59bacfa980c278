package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stage errors
const (
	// ErrCodeTaskFailure indicates a transform, finalize hook or flush hook
	// resolved with an error.
	ErrCodeTaskFailure ErrorCode = "TASK_FAILURE"
	// ErrCodeProtocolViolation indicates a completion contract was broken:
	// a second terminal call, or output emitted after the terminal call.
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	// ErrCodeStageClosed indicates input was offered after end-of-input or
	// after the stage aborted.
	ErrCodeStageClosed ErrorCode = "STAGE_CLOSED"
)

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates a configuration value is out of range.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeMissingField indicates a required configuration field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Caller errors
const (
	// ErrCodeCanceled indicates the caller's context ended first.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var fatalCodes = map[ErrorCode]bool{
	ErrCodeTaskFailure:       true,
	ErrCodeProtocolViolation: true,
	ErrCodeInternal:          true,
}

// IsFatalCode returns true if an error with this code stops the stage.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
