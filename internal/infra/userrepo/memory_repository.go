package userrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

// MemoryRepository provides an in-memory user store for tests/dev.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[int64]auth.User
	emailIndex map[string]int64
	seq        int64
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[int64]auth.User),
		emailIndex: make(map[string]int64),
	}
}

// FindAll returns every stored user ordered by ID.
func (r *MemoryRepository) FindAll(_ context.Context) ([]auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]auth.User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindByEmail returns a user by email.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[email]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

// Save stores the user record.
func (r *MemoryRepository) Save(_ context.Context, user auth.User) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.emailIndex[user.Email]; exists {
		return auth.User{}, auth.ErrEmailExists
	}
	r.seq++
	user.ID = r.seq
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = user
	r.emailIndex[user.Email] = user.ID
	return user, nil
}

// DeleteByEmail removes the user with the given email.
func (r *MemoryRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.emailIndex[email]
	if !ok {
		return auth.ErrRecordNotFound
	}
	delete(r.emailIndex, email)
	delete(r.users, id)
	return nil
}

var _ auth.Repository = (*MemoryRepository)(nil)
