package errors

import "fmt"

// AppError carries a stable code alongside a human-readable message so
// callers can branch on failure class without string matching.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code. This lets the
// sentinel values below work with errors.Is even after wrapping with a cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	// Registry misconfiguration. Fatal, surfaced at startup or registration.
	ErrDuplicateStrategyName = &AppError{Code: "DISPATCH_001", Message: "duplicate strategy name"}
	ErrStrategyNotFound      = &AppError{Code: "DISPATCH_002", Message: "strategy not found"}
	ErrConfigMismatch        = &AppError{Code: "DISPATCH_003", Message: "config type does not match strategy"}

	ErrDuplicateProcessorName = &AppError{Code: "PROC_001", Message: "duplicate processor name"}
	ErrProcessorNotFound      = &AppError{Code: "PROC_002", Message: "processor not found"}
	ErrUnprocessedResult      = &AppError{Code: "PROC_003", Message: "no mechanism to apply redaction result"}

	// Orchestrator budget exhaustion. Local to one chunk, never aborts a batch.
	ErrRequestTimeout = &AppError{Code: "ANALYSIS_001", Message: "timed out waiting for a request slot"}
	ErrTokenTimeout   = &AppError{Code: "ANALYSIS_002", Message: "timed out waiting for token budget"}

	ErrAnalysisCallFailed = &AppError{Code: "ANALYSIS_003", Message: "analysis call failed after retries"}
	ErrUnsupportedModel   = &AppError{Code: "ANALYSIS_004", Message: "unsupported analysis model"}

	// Gate rejection: the caller skips processing. Not an error state.
	ErrNonEnglishContent = &AppError{Code: "LANG_001", Message: "non-English or insufficient English content"}

	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrJobNotFound    = &AppError{Code: "JOB_001", Message: "job not found"}
	ErrInvalidJobID   = &AppError{Code: "JOB_002", Message: "invalid job id"}
	ErrUnauthorized   = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrStorageFailure = &AppError{Code: "STORE_001", Message: "storage operation failed"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
