package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

type memState struct {
	lastID  int64
	byID    map[int64]models.User
	byEmail map[string]int64
}

func newMemState() *memState {
	return &memState{
		byID:    make(map[int64]models.User),
		byEmail: make(map[string]int64),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		lastID:  s.lastID,
		byID:    make(map[int64]models.User, len(s.byID)),
		byEmail: make(map[string]int64, len(s.byEmail)),
	}
	for k, v := range s.byID {
		c.byID[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	return c
}

// MemoryStore keeps users in process memory. It backs dev mode and tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState(), now: time.Now}
}

// Repository returns a repository whose every call is applied immediately.
func (s *MemoryStore) Repository() *MemoryRepository {
	return &MemoryRepository{store: s}
}

// InTx runs fn against a private copy of the store. The copy replaces the
// store only if fn returns nil. Transactions and single calls are serialized:
// every other call waits while fn runs, including any hashing fn does.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, repo *MemoryRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &MemoryRepository{store: s, tx: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// MemoryRepository implements Repository on top of a MemoryStore.
type MemoryRepository struct {
	store *MemoryStore
	// tx is set when bound to an open transaction; the store lock is already held.
	tx *memState
}

func (r *MemoryRepository) do(fn func(st *memState) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := r.do(func(st *memState) error {
		if _, taken := st.byEmail[user.Email]; taken {
			return common.ErrAlreadyExists
		}
		st.lastID++
		now := r.store.now()
		user.ID = st.lastID
		user.CreatedAt = now
		user.UpdatedAt = now
		st.byID[user.ID] = *user
		st.byEmail[user.Email] = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *models.User
	err := r.do(func(st *memState) error {
		id, ok := st.byEmail[email]
		if !ok {
			return common.ErrorNotFound
		}
		u := st.byID[id]
		out = &u
		return nil
	})
	return out, err
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *models.User
	err := r.do(func(st *memState) error {
		u, ok := st.byID[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *MemoryRepository) UpdateRefreshTokenHash(ctx context.Context, id int64, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.do(func(st *memState) error {
		u, ok := st.byID[id]
		if !ok {
			return common.ErrorNotFound
		}
		u.RefreshTokenHash = digest
		u.UpdatedAt = r.store.now()
		st.byID[id] = u
		return nil
	})
}

func (r *MemoryRepository) ClearRefreshTokenHash(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.do(func(st *memState) error {
		u, ok := st.byID[id]
		if !ok || u.RefreshTokenHash == "" {
			return nil
		}
		u.RefreshTokenHash = ""
		u.UpdatedAt = r.store.now()
		st.byID[id] = u
		return nil
	})
}
