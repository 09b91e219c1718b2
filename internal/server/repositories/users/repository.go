// Package users contains the user store gateway: the Repository contract and
// its CouchDB, PostgreSQL and Redis-cached implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/notematic/internal/server/models"
)

// Repository persists and looks up users.
//
// FindByUsername returns common.ErrorNotFound when no user matches.
// Create returns the stored user with its assigned ID and revision, or an
// error matching common.ErrStoreConflict when the username is already held.
// Transport and protocol failures match common.ErrStoreUnavailable.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}
