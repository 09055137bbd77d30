// Package identity holds the identity service core: account lifecycle,
// authentication and the user event feed other services project from.
package identity

import (
	"context"

	"github.com/driftchat/drift/internal/domain"
)

// UserStore persists user accounts.
type UserStore interface {
	// Insert adds the user. Constraint violations surface as
	// domain.ErrUsernameAlreadyExists or domain.ErrEmailAlreadyExists.
	Insert(ctx context.Context, user domain.User) error
	// Update rewrites the mutable columns of an existing user.
	Update(ctx context.Context, user domain.User) error
	// Delete removes the user or returns domain.ErrUserNotFound.
	Delete(ctx context.Context, id domain.UserID) error
	// Get returns the user or domain.ErrUserNotFound.
	Get(ctx context.Context, id domain.UserID) (domain.User, error)
	// GetByUsername returns the user or domain.ErrUserNotFound.
	GetByUsername(ctx context.Context, username domain.Username) (domain.User, error)
	// GetMany returns the users found for ids; missing ids are skipped.
	GetMany(ctx context.Context, ids []domain.UserID) ([]domain.User, error)
}

// EventPublisher pushes user events onto the bus.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, event domain.UserEvent) error
}
