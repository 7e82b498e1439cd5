package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies analysis failures by how the run reacts to them.
type ErrorType string

const (
	// ErrorTypeFormat is a container header that failed validation. Fatal.
	ErrorTypeFormat ErrorType = "FORMAT_ERROR"
	// ErrorTypeDecode is a malformed frame. Logged, the run continues.
	ErrorTypeDecode ErrorType = "DECODE_ERROR"
	// ErrorTypeCorrelation is an observation the engines could not pair or place.
	ErrorTypeCorrelation ErrorType = "CORRELATION_ANOMALY"
	// ErrorTypeResource is an unreadable input or unwritable output. Fatal.
	ErrorTypeResource ErrorType = "RESOURCE_ERROR"
)

// AppError carries the error type and context for a single failure.
type AppError struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches key/value context, merging with existing details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func New(errType ErrorType, message string) *AppError {
	return &AppError{Type: errType, Message: message}
}

func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{Type: errType, Message: message, Err: err}
}

func NewFormatError(format string, args ...interface{}) *AppError {
	return New(ErrorTypeFormat, fmt.Sprintf(format, args...))
}

func NewDecodeError(format string, args ...interface{}) *AppError {
	return New(ErrorTypeDecode, fmt.Sprintf(format, args...))
}

func NewCorrelationAnomaly(format string, args ...interface{}) *AppError {
	return New(ErrorTypeCorrelation, fmt.Sprintf(format, args...))
}

func WrapResource(err error, message string) *AppError {
	return Wrap(err, ErrorTypeResource, message)
}

// TypeOf returns the type of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

func IsFormat(err error) bool { return TypeOf(err) == ErrorTypeFormat }

func IsDecode(err error) bool { return TypeOf(err) == ErrorTypeDecode }

func IsCorrelation(err error) bool { return TypeOf(err) == ErrorTypeCorrelation }

func IsResource(err error) bool { return TypeOf(err) == ErrorTypeResource }

// IsFatal reports whether err must stop the run.
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeDecode, ErrorTypeCorrelation:
		return false
	}
	return err != nil
}
