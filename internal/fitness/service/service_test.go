package service

import (
	"context"
	"errors"
	"testing"

	commonerrors "github.com/trackfit/backend/internal/common/errors"
	"github.com/trackfit/backend/internal/common/logger"
	"github.com/trackfit/backend/internal/fitness/domain"
	"github.com/trackfit/backend/internal/fitness/repository"
)

const goalID = "6f1d2a3e-0b1c-4c55-9a01-000000000001"

type mockRepo struct {
	listGoalsFunc    func(ctx context.Context) ([]domain.Goal, error)
	findGoalFunc     func(ctx context.Context, id string) (domain.Goal, error)
	listMealsFunc    func(ctx context.Context) ([]domain.Meal, error)
	findMealFunc     func(ctx context.Context, id string) (domain.Meal, error)
	listSessionsFunc func(ctx context.Context) ([]domain.Session, error)
	findSessionFunc  func(ctx context.Context, id string) (domain.Session, error)
}

func (m *mockRepo) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	if m.listGoalsFunc != nil {
		return m.listGoalsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepo) FindGoal(ctx context.Context, id string) (domain.Goal, error) {
	if m.findGoalFunc != nil {
		return m.findGoalFunc(ctx, id)
	}
	return domain.Goal{}, repository.ErrGoalNotFound
}

func (m *mockRepo) ListMeals(ctx context.Context) ([]domain.Meal, error) {
	if m.listMealsFunc != nil {
		return m.listMealsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepo) FindMeal(ctx context.Context, id string) (domain.Meal, error) {
	if m.findMealFunc != nil {
		return m.findMealFunc(ctx, id)
	}
	return domain.Meal{}, repository.ErrMealNotFound
}

func (m *mockRepo) ListSessions(ctx context.Context) ([]domain.Session, error) {
	if m.listSessionsFunc != nil {
		return m.listSessionsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepo) FindSession(ctx context.Context, id string) (domain.Session, error) {
	if m.findSessionFunc != nil {
		return m.findSessionFunc(ctx, id)
	}
	return domain.Session{}, repository.ErrSessionNotFound
}

func setupService(t *testing.T) (*FitnessService, *mockRepo) {
	_ = t
	repo := &mockRepo{}
	log, _ := logger.New("", "test", "error")
	return NewFitnessService(repo, log), repo
}

func TestFitnessService_ListGoals(t *testing.T) {
	svc, repo := setupService(t)
	repo.listGoalsFunc = func(ctx context.Context) ([]domain.Goal, error) {
		return []domain.Goal{{ID: goalID, Title: "Musculation"}}, nil
	}

	goals, err := svc.ListGoals(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(goals) != 1 || goals[0].Title != "Musculation" {
		t.Errorf("unexpected goals %+v", goals)
	}
}

func TestFitnessService_GetGoal_InvalidID(t *testing.T) {
	svc, repo := setupService(t)
	repo.findGoalFunc = func(ctx context.Context, id string) (domain.Goal, error) {
		t.Fatal("store must not be queried with a malformed id")
		return domain.Goal{}, nil
	}

	_, err := svc.GetGoal(context.Background(), "42")
	if !errors.Is(err, commonerrors.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestFitnessService_NotFoundMapping(t *testing.T) {
	svc, _ := setupService(t)

	if _, err := svc.GetGoal(context.Background(), goalID); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("expected ErrGoalNotFound, got %v", err)
	}
	if _, err := svc.GetMeal(context.Background(), goalID); !errors.Is(err, ErrMealNotFound) {
		t.Errorf("expected ErrMealNotFound, got %v", err)
	}
	if _, err := svc.GetSession(context.Background(), goalID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFitnessService_StoreFailureIsInternal(t *testing.T) {
	svc, repo := setupService(t)
	repo.listSessionsFunc = func(ctx context.Context) ([]domain.Session, error) {
		return nil, errors.New("relation \"sessions\" does not exist")
	}

	_, err := svc.ListSessions(context.Background())
	domainErr, ok := commonerrors.AsDomainError(err)
	if !ok || domainErr.Code() != "INTERNAL_ERROR" {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestFitnessService_GetSession(t *testing.T) {
	svc, repo := setupService(t)
	repo.findSessionFunc = func(ctx context.Context, id string) (domain.Session, error) {
		return domain.Session{ID: id, GoalIDs: []string{goalID}}, nil
	}

	session, err := svc.GetSession(context.Background(), goalID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(session.GoalIDs) != 1 || session.GoalIDs[0] != goalID {
		t.Errorf("unexpected goal ids %v", session.GoalIDs)
	}
}
