package repository

import (
	"context"
	"sync"

	"github.com/trackfit/backend/internal/user/domain"
)

// MemoryRepository keeps users in process memory. It enforces the same
// email uniqueness as the users table.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[domain.ID]domain.User
	byEmail map[string]domain.ID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[domain.ID]domain.User),
		byEmail: make(map[string]domain.ID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailAlreadyExists
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryRepository) Delete(id domain.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[id]; ok {
		delete(r.byEmail, user.Email)
		delete(r.byID, id)
	}
}
