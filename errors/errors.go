package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Caller errors
	ErrorTypeValidation ErrorType = "validation"

	// Image pipeline errors
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeDecode   ErrorType = "decode"
	ErrorTypeSecurity ErrorType = "security"

	// System errors
	ErrorTypeTimeout  ErrorType = "timeout"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error codes for specific scenarios
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeSourceUnreadable = "SOURCE_UNREADABLE"
	CodeSourceTooLarge   = "SOURCE_TOO_LARGE"
	CodeNotAnImage       = "NOT_AN_IMAGE"
	CodeImageTooLarge    = "IMAGE_TOO_LARGE"
	CodeDecodeFailed     = "DECODE_FAILED"
	CodeOriginForbidden  = "ORIGIN_FORBIDDEN"
	CodePrivateNetwork   = "PRIVATE_NETWORK"
	CodeEncodeFailed     = "ENCODE_FAILED"
	CodeTimeout          = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// Is reports whether target is an *AppError of the same type.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Code:       string(errType),
		HTTPStatus: statusFor(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context, keeping its type.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	inner := FromError(err)
	return &AppError{
		Type:       inner.Type,
		Code:       inner.Code,
		Message:    message,
		InnerError: err,
		HTTPStatus: inner.HTTPStatus,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
		HTTPStatus: statusFor(errType),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain,
// or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message).WithCode(CodeValidationFailed)
}

func NewInvalid(field string, value any, reason string) *AppError {
	return New(ErrorTypeValidation, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithCode(CodeValidationFailed).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

func NewIO(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeIO, message).WithCode(CodeSourceUnreadable)
}

func NewDecode(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeDecode, message).WithCode(CodeDecodeFailed)
}

func NewSecurity(message string) *AppError {
	return New(ErrorTypeSecurity, message).WithCode(CodeOriginForbidden)
}

func NewTimeout(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeTimeout, message).WithCode(CodeTimeout)
}

func NewInternal(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeInternal, message)
}

// statusFor maps an error type to its default HTTP status.
func statusFor(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeDecode:
		return http.StatusUnprocessableEntity
	case ErrorTypeSecurity:
		return http.StatusForbidden
	case ErrorTypeIO:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Format renders an error as a single line: "[type] message | code=… | k=v".
func Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	parts := []string{fmt.Sprintf("[%s] %s", appErr.Type, appErr.Error())}
	if appErr.Code != "" {
		parts = append(parts, "code="+appErr.Code)
	}
	for k, v := range appErr.Details {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}

	return strings.Join(parts, " | ")
}
