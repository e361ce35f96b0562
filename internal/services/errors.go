package services

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a scan or action failure. Codes are strings so they read well in
// logs and JSON reports.
type ErrorCode string

const (
	// CodeSizeOutOfRange marks a file excluded by the size bounds. It is counted and logged, never
	// returned as an error.
	CodeSizeOutOfRange ErrorCode = "SIZE_OUT_OF_RANGE"

	// CodeUnreadableFile marks a stat, open or read failure while hashing.
	CodeUnreadableFile ErrorCode = "UNREADABLE_FILE"

	// CodeActionFailure marks a move or delete that failed for one file.
	CodeActionFailure ErrorCode = "ACTION_FAILURE"

	// CodeInvalidBounds rejects a scan before any work starts.
	CodeInvalidBounds ErrorCode = "INVALID_BOUNDS"

	// CodeDestinationUnavailable rejects a move batch whose destination cannot be created.
	CodeDestinationUnavailable ErrorCode = "DESTINATION_UNAVAILABLE"

	// CodeConfirmationRequired rejects a delete batch without the confirmation token.
	CodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"

	// CodeInvalidRequest covers malformed requests (unknown action, missing destination).
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Error carries a code and the path it concerns, if any.
type Error struct {
	Code ErrorCode
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the ErrorCode from err, or "" when err is not an *Error.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}
