package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tendant/simple-account/pkg/utils"
)

// InMemoryRepository implements Repository using in-memory storage, for tests
// and local development.
type InMemoryRepository struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	usersByEmail map[string]uuid.UUID
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:        make(map[uuid.UUID]User),
		usersByEmail: make(map[string]uuid.UUID),
	}
}

// WithTx returns the repository itself; in-memory storage has no transactions.
func (r *InMemoryRepository) WithTx(tx pgx.Tx) Repository {
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := utils.NormalizeEmail(u.Email)
	if _, exists := r.usersByEmail[email]; exists {
		return fmt.Errorf("email already exists: %s", email)
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = email

	r.users[u.ID] = *u
	r.usersByEmail[email] = u.ID
	return nil
}

func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[utils.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	u := r.users[id]
	return &u, nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *InMemoryRepository) Save(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s not found", u.ID)
	}

	email := utils.NormalizeEmail(u.Email)
	if email != existing.Email {
		if _, taken := r.usersByEmail[email]; taken {
			return fmt.Errorf("email already exists: %s", email)
		}
		delete(r.usersByEmail, existing.Email)
		r.usersByEmail[email] = u.ID
	}

	u.Email = email
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = *u
	return nil
}
