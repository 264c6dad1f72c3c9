package service

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"

	commonerrors "github.com/trackfit/backend/internal/common/errors"
)

type CredentialValidator struct {
	validate *validator.Validate
}

func NewCredentialValidator() CredentialValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return CredentialValidator{validate: v}
}

type registerRules struct {
	Email    string  `validate:"required,email,maxbytes=254"`
	Password string  `validate:"required,min=8,maxbytes=72"`
	Name     *string `validate:"omitempty,max=100"`
}

type loginRules struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

func (cv CredentialValidator) ValidateRegister(input RegisterInput) error {
	return cv.check(registerRules{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
	})
}

func (cv CredentialValidator) ValidateLogin(input LoginInput) error {
	return cv.check(loginRules{
		Email:    input.Email,
		Password: input.Password,
	})
}

func (cv CredentialValidator) check(rules any) error {
	err := cv.validate.Struct(rules)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ErrValidation.WithCause(err)
	}

	fe := fieldErrs[0]
	return fieldError(fe).WithDetails(map[string]any{
		"field": fe.Field(),
		"rule":  fe.Tag(),
	})
}

func fieldError(fe validator.FieldError) commonerrors.DomainError {
	switch fe.Field() {
	case "Email":
		return ErrValidationEmail
	case "Password":
		if fe.Tag() == "required" {
			return ErrValidationPasswordRequired
		}
		return ErrValidationPasswordLength
	case "Name":
		return ErrValidationNameLength
	default:
		return ErrValidation
	}
}
