package repository

import (
	"context"
	"errors"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/trackfit/backend/internal/common/constants"
	"github.com/trackfit/backend/internal/common/db"
	"github.com/trackfit/backend/internal/fitness/domain"
)

var (
	ErrGoalNotFound    = errors.New("goal not found")
	ErrMealNotFound    = errors.New("meal not found")
	ErrSessionNotFound = errors.New("session not found")
)

type Repository interface {
	ListGoals(ctx context.Context) ([]domain.Goal, error)
	FindGoal(ctx context.Context, id string) (domain.Goal, error)
	ListMeals(ctx context.Context) ([]domain.Meal, error)
	FindMeal(ctx context.Context, id string) (domain.Meal, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	FindSession(ctx context.Context, id string) (domain.Session, error)
}

type DBTX interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const (
	goalColumns = `id::text, title, completed, duration, calories, weight, user_id::text`
	mealColumns = `id::text, name, day, calories, protein, carbs, fat, user_id::text`
	sessionBase = `SELECT s.id::text, s.date, s.duration, s.calories, s.weight, s.user_id::text,
		COALESCE(array_agg(sg.goal_id::text ORDER BY sg.goal_id) FILTER (WHERE sg.goal_id IS NOT NULL), '{}')
		FROM sessions s
		LEFT JOIN session_goals sg ON sg.session_id = s.id`
)

func (r *PgRepository) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	return queryAll(ctx, r.db, "list goals", `SELECT `+goalColumns+` FROM goals ORDER BY title, id`, scanGoal)
}

func (r *PgRepository) FindGoal(ctx context.Context, id string) (domain.Goal, error) {
	return queryOne(ctx, r.db, "find goal", ErrGoalNotFound, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id, scanGoal)
}

func (r *PgRepository) ListMeals(ctx context.Context) ([]domain.Meal, error) {
	return queryAll(ctx, r.db, "list meals", `SELECT `+mealColumns+` FROM meals ORDER BY day, id`, scanMeal)
}

func (r *PgRepository) FindMeal(ctx context.Context, id string) (domain.Meal, error) {
	return queryOne(ctx, r.db, "find meal", ErrMealNotFound, `SELECT `+mealColumns+` FROM meals WHERE id = $1`, id, scanMeal)
}

func (r *PgRepository) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return queryAll(ctx, r.db, "list sessions", sessionBase+` GROUP BY s.id ORDER BY s.date, s.id`, scanSession)
}

func (r *PgRepository) FindSession(ctx context.Context, id string) (domain.Session, error) {
	return queryOne(ctx, r.db, "find session", ErrSessionNotFound, sessionBase+` WHERE s.id = $1 GROUP BY s.id`, id, scanSession)
}

func queryAll[T any](ctx context.Context, conn DBTX, operation, sql string, scan func(pgx.Row) (T, error)) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, db.HandleExecError(err, operation, start)
	}
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, db.HandleExecError(err, operation, start)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, db.HandleExecError(err, operation, start)
	}

	db.MeasureQueryDuration(operation, start)
	return items, nil
}

// queryOne assumes the caller validated id as a UUID; a malformed id would
// fail the cast on the server instead of matching nothing.
func queryOne[T any](ctx context.Context, conn DBTX, operation string, notFound error, sql, id string, scan func(pgx.Row) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	item, err := scan(conn.QueryRow(ctx, sql, id))
	if err != nil {
		var zero T
		return zero, db.HandleQueryError(err, notFound, operation, start)
	}
	db.MeasureQueryDuration(operation, start)
	return item, nil
}

func scanGoal(row pgx.Row) (domain.Goal, error) {
	var g domain.Goal
	err := row.Scan(&g.ID, &g.Title, &g.Completed, &g.Duration, &g.Calories, &g.Weight, &g.UserID)
	return g, err
}

func scanMeal(row pgx.Row) (domain.Meal, error) {
	var m domain.Meal
	err := row.Scan(&m.ID, &m.Name, &m.Day, &m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.UserID)
	return m, err
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.Date, &s.Duration, &s.Calories, &s.Weight, &s.UserID, &s.GoalIDs)
	return s, err
}
