// Package apierrors defines the unified error taxonomy exposed at every API
// boundary. Services and middleware translate internal failures into these
// codes; handlers never invent ad-hoc error strings.
//
// The code set is fixed. Clients, dashboards and log pipelines key off the
// literal values, so adding or renaming a code is a breaking change.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a stable error category in the API taxonomy.
type Code string

const (
	CodeAuthTokenMissing Code = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid Code = "AUTH_TOKEN_INVALID"
	CodeAuthTokenExpired Code = "AUTH_TOKEN_EXPIRED"
	CodeAccessForbidden  Code = "ACCESS_FORBIDDEN"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "RESOURCE_NOT_FOUND"
	CodeConflict         Code = "RESOURCE_CONFLICT"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeDBUnavailable    Code = "DB_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL_SERVER_ERROR"
)

var httpStatus = map[Code]int{
	CodeAuthTokenMissing: http.StatusUnauthorized,
	CodeAuthTokenInvalid: http.StatusUnauthorized,
	CodeAuthTokenExpired: http.StatusUnauthorized,
	CodeAccessForbidden:  http.StatusForbidden,
	CodeValidation:       http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeConflict:         http.StatusConflict,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeDBUnavailable:    http.StatusServiceUnavailable,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the canonical HTTP status for the code.
// Unknown codes map to 500 so a miswired translation can never
// accidentally grant access with a 2xx.
func (c Code) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// IsServerError reports whether the code maps to a 5xx status.
func (c Code) IsServerError() bool {
	return c.HTTPStatus() >= http.StatusInternalServerError
}

// Error is a classified error carrying a taxonomy code, a client-safe
// message and an optional wrapped cause for logs.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

// New creates a classified error with a client-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a classified error with a formatted client-safe message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause stays available to
// errors.Is/As and to logs; only code and message reach the client.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured details rendered in the response body.
// Details must already be client-safe; the sanitizer does not see them.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether the first classified error in err's chain
// carries the code.
func HasCode(err error, code Code) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code == code
	}
	return false
}

// CodeOf extracts the taxonomy code from err. Unclassified errors report
// CodeInternal so the boundary always has something valid to write.
func CodeOf(err error) Code {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code
	}
	return CodeInternal
}
