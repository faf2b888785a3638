package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bptrack/internal/domain"

	"github.com/google/uuid"
)

// MemoryUsersRepo in-process accounts for dev mode without a database.
type MemoryUsersRepo struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string // lower(email) -> user_id
}

func NewMemoryUsersRepo() *MemoryUsersRepo {
	return &MemoryUsersRepo{
		byID:    map[string]*domain.User{},
		byEmail: map[string]string{},
	}
}

var _ UsersRepository = (*MemoryUsersRepo)(nil)

func (r *MemoryUsersRepo) Create(_ context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("email is required")
	}
	email := strings.ToLower(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	r.byID[cp.ID] = &cp
	r.byEmail[email] = cp.ID
	return nil
}

func (r *MemoryUsersRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *MemoryUsersRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}
