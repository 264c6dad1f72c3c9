package service

import (
	"errors"
	"net/http"

	commonerrors "github.com/trackfit/backend/internal/common/errors"
)

var (
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid email or password",
	)

	ErrDuplicateEmail = commonerrors.NewDomainError(
		"DUPLICATE_EMAIL",
		commonerrors.CategoryConflict,
		http.StatusBadRequest,
		"a user with this email already exists",
	)

	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_FAILED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"validation failed",
	)

	ErrValidationEmail = commonerrors.NewDomainError(
		"VALIDATION_EMAIL",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"email must be a valid address",
	)

	ErrValidationPasswordLength = commonerrors.NewDomainError(
		"VALIDATION_PASSWORD_LENGTH",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"password must be between 8 and 72 characters",
	)

	ErrValidationPasswordRequired = commonerrors.NewDomainError(
		"VALIDATION_PASSWORD_REQUIRED",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"password is required",
	)

	ErrValidationNameLength = commonerrors.NewDomainError(
		"VALIDATION_NAME_LENGTH",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"name must be at most 100 characters",
	)
)

func handleCircuitBreakerError(err error) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return commonerrors.ErrServiceUnavailable.WithCause(err)
	}
	return commonerrors.ErrInternal.WithCause(err)
}
