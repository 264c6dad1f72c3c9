package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/trackfit/backend/internal/common/db"
	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/fitness/domain"
	"github.com/trackfit/backend/internal/fitness/repository"
)

type FitnessService struct {
	repo  repository.Repository
	log   *logger.Logger
	retry db.RetryConfig
}

func NewFitnessService(repo repository.Repository, log *logger.Logger) *FitnessService {
	return &FitnessService{repo: repo, log: log, retry: db.DefaultRetryConfig}
}

func (s *FitnessService) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	return list(ctx, s, "list_goals", s.repo.ListGoals)
}

func (s *FitnessService) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return get(ctx, s, "get_goal", id, repository.ErrGoalNotFound, ErrGoalNotFound, s.repo.FindGoal)
}

func (s *FitnessService) ListMeals(ctx context.Context) ([]domain.Meal, error) {
	return list(ctx, s, "list_meals", s.repo.ListMeals)
}

func (s *FitnessService) GetMeal(ctx context.Context, id string) (domain.Meal, error) {
	return get(ctx, s, "get_meal", id, repository.ErrMealNotFound, ErrMealNotFound, s.repo.FindMeal)
}

func (s *FitnessService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return list(ctx, s, "list_sessions", s.repo.ListSessions)
}

func (s *FitnessService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return get(ctx, s, "get_session", id, repository.ErrSessionNotFound, ErrSessionNotFound, s.repo.FindSession)
}

func list[T any](ctx context.Context, s *FitnessService, action string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	var items []T
	err := db.RetryWithBackoff(ctx, s.log, s.retry, func() error {
		found, err := fetch(ctx)
		if err != nil {
			return err
		}
		items = found
		return nil
	})
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": action + "_failed",
		}).Errorf("%s failed: %v", action, err)
		return nil, commonerrors.ErrInternal.WithCause(err)
	}
	return items, nil
}

func get[T any](
	ctx context.Context,
	s *FitnessService,
	action, id string,
	storeNotFound error,
	notFound commonerrors.DomainError,
	fetch func(context.Context, string) (T, error),
) (T, error) {
	var zero T
	if _, err := uuid.Parse(id); err != nil {
		return zero, commonerrors.ErrInvalidID.WithCause(err)
	}

	var item T
	err := db.RetryWithBackoff(ctx, s.log, s.retry, func() error {
		found, err := fetch(ctx, id)
		if err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		if errors.Is(err, storeNotFound) {
			return zero, notFound
		}
		s.log.WithFields(ctx, logger.Fields{
			"id":     id,
			"action": action + "_failed",
		}).Errorf("%s failed: %v", action, err)
		return zero, commonerrors.ErrInternal.WithCause(err)
	}
	return item, nil
}
