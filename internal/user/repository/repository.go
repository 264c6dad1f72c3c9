package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/trackfit/backend/internal/common/constants"
	"github.com/trackfit/backend/internal/common/db"
	"github.com/trackfit/backend/internal/user/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
}

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

// Create relies on the users_email_key constraint for uniqueness; there is
// no lookup beforehand.
func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO users (id, email, password_hash, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		string(user.ID),
		user.Email,
		user.PasswordHash,
		user.Name,
		user.CreatedAt,
	)
	if err != nil && db.IsUniqueViolation(err) {
		db.MeasureQueryDuration("create user", start)
		return ErrEmailAlreadyExists
	}
	return db.HandleExecError(err, "create user", start)
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	row := r.db.QueryRow(
		ctx,
		`SELECT id, email, password_hash, name, created_at FROM users WHERE email = $1`,
		email,
	)

	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, db.HandleQueryError(err, ErrUserNotFound, "find user by email", start)
	}
	db.MeasureQueryDuration("find user by email", start)
	return user, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return domain.User{}, ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	row := r.db.QueryRow(
		ctx,
		`SELECT id, email, password_hash, name, created_at FROM users WHERE id = $1`,
		string(id),
	)

	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, db.HandleQueryError(err, ErrUserNotFound, "find user by id", start)
	}
	db.MeasureQueryDuration("find user by id", start)
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		id   string
	)
	if err := row.Scan(&id, &user.Email, &user.PasswordHash, &user.Name, &user.CreatedAt); err != nil {
		return domain.User{}, err
	}
	user.ID = domain.ID(id)
	return user, nil
}
