package repomanager

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// Repositories is the set of repositories bound to one connection or
// one transaction.
type Repositories interface {
	Users() users.Repository
}

// RepositoryManager vends repositories bound to the pool, runs work inside a
// transaction and owns the schema.
type RepositoryManager interface {
	Repositories
	// InTx runs fn in a transaction. The repositories passed to fn see the
	// transaction; it commits only if fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
}
