package repomanager

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. Data is lost
// on restart.
type MemoryRepositoryManager struct {
	users *users.MemoryStore
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryStore()}
}

type memoryRepos struct {
	users *users.MemoryRepository
}

func (r memoryRepos) Users() users.Repository { return r.users }

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.users.Repository()
}

func (m *MemoryRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	return m.users.InTx(ctx, func(ctx context.Context, repo *users.MemoryRepository) error {
		return fn(ctx, memoryRepos{users: repo})
	})
}

// RunMigrations is a no-op; the memory store has no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return ctx.Err() }
