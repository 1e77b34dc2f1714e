// Package users persists user credential records.
//
// Email is the login key and is unique. The refresh-token digest column holds
// at most one digest per user; NULL means no active session.
package users

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID and timestamps. It returns
	// common.ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateRefreshTokenHash(ctx context.Context, id int64, digest string) error
	// ClearRefreshTokenHash drops the stored digest if there is one.
	// Clearing an already empty digest is not an error.
	ClearRefreshTokenHash(ctx context.Context, id int64) error
}
