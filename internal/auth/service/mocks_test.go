package service

import (
	"context"
	"fmt"
	"sync/atomic"

	userdomain "github.com/trackfit/backend/internal/user/domain"
	userrepo "github.com/trackfit/backend/internal/user/repository"
)

type mockUserRepo struct {
	createFunc      func(ctx context.Context, user userdomain.User) error
	findByEmailFunc func(ctx context.Context, email string) (userdomain.User, error)
	findByIDFunc    func(ctx context.Context, id userdomain.ID) (userdomain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user userdomain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (userdomain.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

func (m *mockUserRepo) FindByID(ctx context.Context, id userdomain.ID) (userdomain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return userdomain.User{}, userrepo.ErrUserNotFound
}

type mockHasher struct {
	hashFunc     func(password string) (string, error)
	compareFunc  func(hash string, password string) error
	compareCalls atomic.Int32
}

func (m *mockHasher) Hash(password string) (string, error) {
	if m.hashFunc != nil {
		return m.hashFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockHasher) Compare(hash string, password string) error {
	m.compareCalls.Add(1)
	if m.compareFunc != nil {
		return m.compareFunc(hash, password)
	}
	return nil
}

type mockIDGenerator struct {
	newIDFunc func() (string, error)
	counter   atomic.Int64
}

func (m *mockIDGenerator) NewID() (string, error) {
	if m.newIDFunc != nil {
		return m.newIDFunc()
	}
	return fmt.Sprintf("id-%d", m.counter.Add(1)), nil
}
