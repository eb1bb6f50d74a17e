package history

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "validation_error"
	ErrorCodeTransport   ErrorCode = "transport_error"
	ErrorCodeServer      ErrorCode = "server_error"
	ErrorCodeApplication ErrorCode = "application_error"
	ErrorCodeDecode      ErrorCode = "decode_error"
)

// Error is returned by every Client call. Message is safe to show to a user.
type Error struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, status int, message string, err error) *Error {
	return &Error{
		Code:       code,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Code
	}
	return ""
}

func serverErrorMessage(status int) string {
	return fmt.Sprintf("server error (%d)", status)
}
