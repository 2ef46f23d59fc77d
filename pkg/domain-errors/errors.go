// Package domainerrors carries the error taxonomy shared by the verification
// flow and its transport layer. Every error crossing a package boundary should
// carry a Code so callers can branch without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeInvalidState Code = "invalid_state"
	CodeInternal     Code = "internal_error"
	CodeRateLimited  Code = "rate_limited"

	// Camera acquisition failures. These are terminal for the current
	// face-scan attempt and are surfaced to the patient verbatim.
	CodeCameraPermission  Code = "camera_permission"
	CodeCameraUnavailable Code = "camera_unavailable"
	CodeCameraBusy        Code = "camera_busy"
	CodeCameraTimeout     Code = "camera_timeout"
	CodeCameraUnknown     Code = "camera_unknown"

	// CodeNetwork covers transport and server failures on any collaborator call.
	CodeNetwork Code = "network_error"
	// CodeNoMatch means a scan was readable but below confidence or lookup thresholds.
	CodeNoMatch Code = "no_match"
	// CodeBudgetExhausted marks the intentional escalation to the manual path.
	CodeBudgetExhausted Code = "budget_exhausted"
)

// Error is a coded error with a message safe to show to the caller.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// IsCamera reports whether code belongs to the camera acquisition family.
func IsCamera(code Code) bool {
	switch code {
	case CodeCameraPermission, CodeCameraUnavailable, CodeCameraBusy, CodeCameraTimeout, CodeCameraUnknown:
		return true
	}
	return false
}
