package accounterr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable identifier for a domain error.
// The set of codes is closed: services may only surface codes declared here.
type ErrorCode string

const (
	// Generic / defensive
	ErrCodeUnknown     ErrorCode = "unknown_error"
	ErrCodeUnknownCode ErrorCode = "unknown_error_code"
	ErrCodeBadParams   ErrorCode = "bad_params"

	// Authentication / account state
	ErrCodeBadCredentials  ErrorCode = "bad_credentials"
	ErrCodeAccessDenied    ErrorCode = "access_denied"
	ErrCodeDisabledAccount ErrorCode = "disabled_account"
	ErrCodeSignupDisabled  ErrorCode = "signup_disabled"

	// Token lifecycle
	ErrCodeTokenExpired ErrorCode = "token_expired"
	ErrCodeInvalidToken ErrorCode = "invalid_token"

	// Second factor
	ErrCodeTwoFactorTokenRequired ErrorCode = "two_factor_token_required"
	ErrCodeTwoFactorCodeRequired  ErrorCode = "two_factor_code_required"
	ErrCodeTwoFactorCodeInvalid   ErrorCode = "two_factor_code_invalid"
	ErrCodeTwoFactorAlreadyOn     ErrorCode = "two_factor_already_enable"
	ErrCodeTwoFactorNotEnabled    ErrorCode = "two_factor_not_enabled"

	// Password rules
	ErrCodePasswordShouldBeDifferent ErrorCode = "password_should_be_different"

	// Infrastructure
	ErrCodeSQLConcurrent ErrorCode = "sql_concurrent"
	ErrCodeCrypto        ErrorCode = "crypto_error"
)

type errorConfig struct {
	status      int
	description string
}

// registry maps each code to its HTTP-like severity and the non-sensitive
// description exposed to callers. The description is distinct from Message,
// which is for logs only.
var registry = map[ErrorCode]errorConfig{
	ErrCodeUnknown:     {http.StatusInternalServerError, "Unknown error"},
	ErrCodeUnknownCode: {http.StatusInternalServerError, "Unknown error"},
	ErrCodeBadParams:   {http.StatusBadRequest, "Bad parameters"},

	ErrCodeBadCredentials:  {http.StatusBadRequest, "Bad credentials"},
	ErrCodeAccessDenied:    {http.StatusBadRequest, "Access denied"},
	ErrCodeDisabledAccount: {http.StatusNotFound, "Account disabled"},
	ErrCodeSignupDisabled:  {http.StatusNotFound, "Signup disabled"},

	ErrCodeTokenExpired: {http.StatusNotFound, "This token is expired"},
	ErrCodeInvalidToken: {http.StatusNotFound, "Invalid token"},

	ErrCodeTwoFactorTokenRequired: {http.StatusBadRequest, "This account has enabled two-factor authentication and the token is required"},
	ErrCodeTwoFactorCodeRequired:  {http.StatusNotFound, "The two-factor code is required"},
	ErrCodeTwoFactorCodeInvalid:   {http.StatusNotFound, "The two-factor code you provided is invalid"},
	ErrCodeTwoFactorAlreadyOn:     {http.StatusBadRequest, "Two-factor authentication is already enabled"},
	ErrCodeTwoFactorNotEnabled:    {http.StatusBadRequest, "Two-factor authentication is not enabled"},

	ErrCodePasswordShouldBeDifferent: {http.StatusNotFound, "New password should be different"},

	ErrCodeSQLConcurrent: {http.StatusInternalServerError, "Too much concurrency on the same resource"},
	ErrCodeCrypto:        {http.StatusInternalServerError, "Cipher failure"},
}

// Error is a structured domain error with a stable code, a log message, and
// optional details. Details are for logging and must never carry credentials.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// HTTPStatus returns the severity of this error as an HTTP status code.
func (e *Error) HTTPStatus() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// Description returns the caller-facing description for this error's code.
func (e *Error) Description() string {
	if cfg, ok := registry[e.Code]; ok {
		return cfg.description
	}
	return registry[ErrCodeUnknown].description
}

// New creates a new Error with the given code. A code absent from the
// registry is downgraded to unknown_error_code so callers never see an
// unregistered code.
func New(code ErrorCode) *Error {
	if _, ok := registry[code]; !ok {
		return &Error{
			Code:    ErrCodeUnknownCode,
			Message: fmt.Sprintf("unregistered error code %q", code),
		}
	}
	return &Error{Code: code}
}

// Newf creates a new Error with a formatted log message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	e := New(code)
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps an existing error with a code and log message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code)
	e.Message = message
	e.Err = err
	return e
}

// Wrapf wraps an existing error with a code and formatted log message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	e := New(code)
	e.Message = fmt.Sprintf(format, args...)
	e.Err = err
	return e
}

// IsCode checks if an error carries a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns unknown_error if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

// GetDetails extracts the details from an error.
// Returns nil if the error is not a structured Error.
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps an error code to its HTTP status
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	if cfg, ok := registry[code]; ok {
		return cfg.status
	}
	return http.StatusInternalServerError
}
