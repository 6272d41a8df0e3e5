package repository

import (
	"context"
	"sync"

	"semaphore/auth-session/internal/model"
)

// MemoryStore is an in-process user store for tests and local runs without
// Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryStore(users ...model.User) *MemoryStore {
	store := &MemoryStore{users: make(map[string]model.User, len(users))}
	for _, user := range users {
		store.Put(user)
	}
	return store
}

// Put inserts or replaces a user by id.
func (s *MemoryStore) Put(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *MemoryStore) SetActive(userID string, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return false
	}
	user.IsActive = active
	s.users[userID] = user
	return true
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found model.User
		count int
	)
	for _, user := range s.users {
		if user.Email == email {
			found = user
			count++
		}
	}
	switch count {
	case 0:
		return model.User{}, model.ErrUserNotFound
	case 1:
		return found, nil
	default:
		return model.User{}, ErrAmbiguousEmail
	}
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
