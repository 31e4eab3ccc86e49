package errors

import (
	"errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeCloneFailed        ErrCode = "CLONE_FAILED"
	ErrCodeCommandFailed      ErrCode = "COMMAND_FAILED"
	ErrCodeRemoteLookupFailed ErrCode = "REMOTE_LOOKUP_FAILED"
	ErrCodeParseAnomaly       ErrCode = "PARSE_ANOMALY"
	ErrCodeLocked             ErrCode = "LOCKED"
	ErrCodeNotFound           ErrCode = "NOT_FOUND"
	ErrCodeRateLimited        ErrCode = "RATE_LIMITED"
	ErrCodeInternal           ErrCode = "INTERNAL_ERROR"
	ErrCodeBadRequest         ErrCode = "BAD_REQUEST"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewCloneFailedError creates an error for a working copy that could not be cloned
func NewCloneFailedError(repo string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeCloneFailed,
		Message: fmt.Sprintf("failed to clone repo %s", repo),
		Err:     err,
	}
}

// NewCommandFailedError creates an error for a failed version control command
func NewCommandFailedError(repo, command string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeCommandFailed,
		Message: fmt.Sprintf("failed to run git command %q on %s", command, repo),
		Err:     err,
	}
}

// NewRemoteLookupFailedError creates an error for a failed remote API call
func NewRemoteLookupFailedError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeRemoteLookupFailed,
		Message: message,
		Err:     err,
	}
}

// NewParseAnomalyError creates an error for a log record that could not be split into fields
func NewParseAnomalyError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeParseAnomaly,
		Message: message,
	}
}

// NewLockedError creates an error for a repository another pass is holding
func NewLockedError(repo string) *AppError {
	return &AppError{
		Code:    ErrCodeLocked,
		Message: fmt.Sprintf("another synchronization pass holds %s", repo),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// CodeOf returns the code of the first AppError in the chain, or "" if there is none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCloneFailed checks if the error is a clone failure
func IsCloneFailed(err error) bool {
	return CodeOf(err) == ErrCodeCloneFailed
}

// IsCommandFailed checks if the error is a command failure
func IsCommandFailed(err error) bool {
	return CodeOf(err) == ErrCodeCommandFailed
}

// IsRemoteLookupFailed checks if the error is a remote lookup failure
func IsRemoteLookupFailed(err error) bool {
	return CodeOf(err) == ErrCodeRemoteLookupFailed
}

// IsLocked checks if the error is a lease conflict
func IsLocked(err error) bool {
	return CodeOf(err) == ErrCodeLocked
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return CodeOf(err) == ErrCodeRateLimited
}
