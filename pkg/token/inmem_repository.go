package token

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tendant/simple-account/pkg/user"
)

// InMemoryRepository implements Repository using in-memory storage. The
// optional user repository backs the WithUser eager load.
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]Token
	users  user.Repository
}

// NewInMemoryRepository creates an in-memory token repository. users may be
// nil if FindByTypeAndValueWithUser is never exercised.
func NewInMemoryRepository(users user.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[uuid.UUID]Token),
		users:  users,
	}
}

// WithTx returns the repository itself; in-memory storage has no transactions.
func (r *InMemoryRepository) WithTx(tx pgx.Tx) Repository {
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.UserAgentInfo == nil {
		t.UserAgentInfo = map[string]interface{}{}
	}
	if t.Extra == nil {
		t.Extra = map[string]interface{}{}
	}

	r.tokens[t.ID] = *t
	return nil
}

func (r *InMemoryRepository) FindByTypeAndValueWithUser(ctx context.Context, typ Type, value string) (*Token, error) {
	r.mu.RLock()
	var found *Token
	for _, t := range r.tokens {
		if t.Type == typ && t.Value == value {
			match := t
			found = &match
			break
		}
	}
	r.mu.RUnlock()

	if found == nil {
		return nil, nil
	}

	if r.users != nil {
		owner, err := r.users.FindByID(ctx, found.UserID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			// Token without an owner behaves as absent; the join is required.
			return nil, nil
		}
		found.User = owner
	}
	return found, nil
}

func (r *InMemoryRepository) FindByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) ([]Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tokens []Token
	for _, t := range r.tokens {
		if t.UserID == userID && t.Type == typ {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
	})
	return tokens, nil
}

func (r *InMemoryRepository) DeleteByUserAndType(ctx context.Context, userID uuid.UUID, typ Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == userID && t.Type == typ {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, id)
	return nil
}

func (r *InMemoryRepository) Save(ctx context.Context, t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[t.ID]; !ok {
		return fmt.Errorf("token %s not found", t.ID)
	}
	t.UpdatedAt = time.Now().UTC()
	stored := *t
	stored.User = nil
	r.tokens[t.ID] = stored
	return nil
}

func (r *InMemoryRepository) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok {
		return fmt.Errorf("token %s not found", id)
	}
	t.UpdatedAt = time.Now().UTC()
	r.tokens[id] = t
	return nil
}

// SetUpdatedAt rewinds or advances a token's timestamp, for expiry tests.
func (r *InMemoryRepository) SetUpdatedAt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tokens[id]; ok {
		t.UpdatedAt = at
		r.tokens[id] = t
	}
}

// SetCreatedAt rewinds a token's creation time, for expiry tests.
func (r *InMemoryRepository) SetCreatedAt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tokens[id]; ok {
		t.CreatedAt = at
		r.tokens[id] = t
	}
}
