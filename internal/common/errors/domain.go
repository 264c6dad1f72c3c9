package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "VALIDATION"
	CategoryAuth         ErrorCategory = "AUTH"
	CategoryNotFound     ErrorCategory = "NOT_FOUND"
	CategoryConflict     ErrorCategory = "CONFLICT"
	CategoryUnauthorized ErrorCategory = "UNAUTHORIZED"
	CategoryInternal     ErrorCategory = "INTERNAL"
	CategoryExternal     ErrorCategory = "EXTERNAL"
)

type DomainError interface {
	error
	Code() string
	Category() ErrorCategory
	HTTPStatus() int
	Message() string
	Details() map[string]any
	Unwrap() error
	WithCause(cause error) DomainError
	WithDetails(details map[string]any) DomainError
}

type domainError struct {
	code     string
	category ErrorCategory
	status   int
	message  string
	details  map[string]any
	cause    error
}

func (e *domainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *domainError) Code() string {
	return e.code
}

func (e *domainError) Category() ErrorCategory {
	return e.category
}

func (e *domainError) HTTPStatus() int {
	return e.status
}

func (e *domainError) Message() string {
	return e.message
}

func (e *domainError) Details() map[string]any {
	return e.details
}

func (e *domainError) Unwrap() error {
	return e.cause
}

// Is matches on code so that copies made by WithCause and WithDetails
// still satisfy errors.Is against the package-level sentinel.
func (e *domainError) Is(target error) bool {
	t, ok := target.(*domainError)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *domainError) WithCause(cause error) DomainError {
	return &domainError{
		code:     e.code,
		category: e.category,
		status:   e.status,
		message:  e.message,
		details:  e.details,
		cause:    cause,
	}
}

func (e *domainError) WithDetails(details map[string]any) DomainError {
	return &domainError{
		code:     e.code,
		category: e.category,
		status:   e.status,
		message:  e.message,
		details:  details,
		cause:    e.cause,
	}
}

func NewDomainError(code string, category ErrorCategory, status int, message string) DomainError {
	return &domainError{
		code:     code,
		category: category,
		status:   status,
		message:  message,
	}
}

func IsDomainError(err error) bool {
	var de DomainError
	return errors.As(err, &de)
}

func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

var (
	ErrInternal = NewDomainError(
		"INTERNAL_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"internal server error",
	)

	ErrCircuitOpen = NewDomainError(
		"CIRCUIT_OPEN",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"circuit breaker is open",
	)

	ErrServiceUnavailable = NewDomainError(
		"SERVICE_UNAVAILABLE",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)

	ErrRateLimited = NewDomainError(
		"RATE_LIMITED",
		CategoryValidation,
		http.StatusTooManyRequests,
		"rate limit exceeded",
	)

	ErrMissingToken = NewDomainError(
		"MISSING_TOKEN",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"missing token",
	)

	ErrInvalidToken = NewDomainError(
		"INVALID_TOKEN",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid token",
	)

	ErrUserNotFound = NewDomainError(
		"USER_NOT_FOUND",
		CategoryNotFound,
		http.StatusNotFound,
		"user not found",
	)

	ErrInvalidID = NewDomainError(
		"INVALID_ID",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid id",
	)

	ErrRequestTooLarge = NewDomainError(
		"REQUEST_TOO_LARGE",
		CategoryValidation,
		http.StatusRequestEntityTooLarge,
		"request body too large",
	)

	ErrInvalidJSON = NewDomainError(
		"INVALID_JSON",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid json",
	)
)
