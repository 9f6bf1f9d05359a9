package kaldi

import "errors"

// ErrExecutableNotFound is returned when a Kaldi binary cannot be located
var ErrExecutableNotFound = errors.New("kaldi executable not found")

func (e *Error) Error() string {
	msg := e.Message
	if e.Command != "" {
		msg = e.Command + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

// Error represents a failure talking to a Kaldi tool or decoding its output
type Error struct {
	Code    string `json:"code"`
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
	Stderr  string `json:"stderr,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNotFound          = "EXECUTABLE_NOT_FOUND"
	ErrCodeExec              = "EXEC_FAILED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCanceled          = "CANCELED"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeMissingKey        = "MISSING_KEY"
)

func NewError(code, command, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Command: command,
		Message: message,
		Cause:   cause,
	}
}

// IsNotFound reports whether err means the executable is missing
func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutableNotFound)
}

// Code extracts the error code from a Kaldi error chain, or "" if none
func Code(err error) string {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code
	}
	return ""
}
