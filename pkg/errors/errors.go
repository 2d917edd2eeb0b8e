package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Probe errors
	ErrUnsupportedKernel ErrorCode = "UNSUPPORTED_KERNEL"
	ErrUnsupportedOS     ErrorCode = "UNSUPPORTED_OS"
	ErrRootRefused       ErrorCode = "ROOT_REFUSED"
	ErrNotInAdminGroup   ErrorCode = "NOT_IN_ADMIN_GROUP"
	ErrMissingHostTool   ErrorCode = "MISSING_HOST_TOOL"

	// Package errors
	ErrPackageQuery     ErrorCode = "PACKAGE_QUERY"
	ErrPackagePrep      ErrorCode = "PACKAGE_PREP"
	ErrPackageInstall   ErrorCode = "PACKAGE_INSTALL"
	ErrRepoSetup        ErrorCode = "REPO_SETUP"
	ErrUnknownOSRelease ErrorCode = "UNKNOWN_OS_RELEASE"

	// Shell profile errors
	ErrProfileRead  ErrorCode = "PROFILE_READ"
	ErrProfileWrite ErrorCode = "PROFILE_WRITE"

	// Git target errors
	ErrClone ErrorCode = "CLONE"
	ErrPull  ErrorCode = "PULL"

	// Runtime errors
	ErrManagerConflict    ErrorCode = "MANAGER_CONFLICT"
	ErrManagerUnavailable ErrorCode = "MANAGER_UNAVAILABLE"
	ErrRuntimeBuild       ErrorCode = "RUNTIME_BUILD"
	ErrGemInstall         ErrorCode = "GEM_INSTALL"
	ErrFeatureProbe       ErrorCode = "FEATURE_PROBE"

	// Native build errors
	ErrDownload ErrorCode = "DOWNLOAD"
	ErrChecksum ErrorCode = "CHECKSUM"
	ErrExtract  ErrorCode = "EXTRACT"
	ErrBuild    ErrorCode = "BUILD"
	ErrSmoke    ErrorCode = "SMOKE_CHECK"

	// Filesystem errors
	ErrFileAccess    ErrorCode = "FILE_ACCESS"
	ErrFileWrite     ErrorCode = "FILE_WRITE"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"

	// Command execution errors
	ErrCommandRun ErrorCode = "COMMAND_RUN"
)

// fatalCodes are the load-bearing preconditions from the error taxonomy:
// they terminate the whole run with exit status 1. Everything else is
// recorded on the run report and execution continues.
var fatalCodes = map[ErrorCode]bool{
	ErrUnsupportedKernel:  true,
	ErrUnsupportedOS:      true,
	ErrRootRefused:        true,
	ErrNotInAdminGroup:    true,
	ErrMissingHostTool:    true,
	ErrPackageInstall:     true,
	ErrUnknownOSRelease:   true,
	ErrManagerConflict:    true,
	ErrManagerUnavailable: true,
}

// IsFatal reports whether err carries a code that must abort the run.
func IsFatal(err error) bool {
	var se *StrapError
	if errors.As(err, &se) {
		return fatalCodes[se.Code]
	}
	return false
}

// StrapError represents a structured error with code and details
type StrapError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *StrapError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StrapError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *StrapError) Is(target error) bool {
	var targetErr *StrapError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new StrapError with the given code and message
func New(code ErrorCode, message string) *StrapError {
	return &StrapError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new StrapError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *StrapError {
	return &StrapError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a StrapError. A nil err yields a nil
// error interface, never a typed nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &StrapError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message. A nil err
// yields a nil error interface, never a typed nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &StrapError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *StrapError) WithDetail(key string, value interface{}) *StrapError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var se *StrapError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a StrapError
func GetErrorCode(err error) ErrorCode {
	var se *StrapError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrUnknown
}
