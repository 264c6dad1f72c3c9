package service

import (
	"net/http"

	commonerrors "github.com/trackfit/backend/internal/common/errors"
)

var (
	ErrGoalNotFound = commonerrors.NewDomainError(
		"GOAL_NOT_FOUND",
		commonerrors.CategoryNotFound,
		http.StatusNotFound,
		"goal not found",
	)

	ErrMealNotFound = commonerrors.NewDomainError(
		"MEAL_NOT_FOUND",
		commonerrors.CategoryNotFound,
		http.StatusNotFound,
		"meal not found",
	)

	ErrSessionNotFound = commonerrors.NewDomainError(
		"SESSION_NOT_FOUND",
		commonerrors.CategoryNotFound,
		http.StatusNotFound,
		"session not found",
	)
)
