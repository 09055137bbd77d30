// Package chat holds the chat service core: channel and message
// operations, the live fan-out dispatcher and the user replica projector.
// Storage and transport live behind the interfaces in this file.
package chat

import (
	"context"
	"time"

	"github.com/driftchat/drift/internal/domain"
)

// ChannelStore persists channels and their membership side tables.
type ChannelStore interface {
	// Create inserts the channel and, for private and direct variants, the
	// membership rows in one transaction. A public name collision returns
	// domain.ErrNameAlreadyExists.
	Create(ctx context.Context, channel domain.Channel) error
	// Get returns the channel or domain.ErrChannelNotFound.
	Get(ctx context.Context, id domain.ChannelID) (domain.Channel, error)
	// ListPublic returns all public channels, newest first.
	ListPublic(ctx context.Context) ([]domain.Channel, error)
	// ListForUser returns channels the user created, is a member of or a
	// participant in, newest first.
	ListForUser(ctx context.Context, user domain.UserID) ([]domain.Channel, error)
	// AddMember records membership of user in a private channel.
	AddMember(ctx context.Context, channel domain.ChannelID, user domain.UserID) error
	// RemoveMember drops the membership row; missing rows are a no-op.
	RemoveMember(ctx context.Context, channel domain.ChannelID, user domain.UserID) error
	// RemoveUser strips the user from every membership table and deletes
	// channels the user created. Used by the replica projector on user
	// deletion.
	RemoveUser(ctx context.Context, user domain.UserID) error
}

// MessageStore persists messages in the wide-column store.
type MessageStore interface {
	Insert(ctx context.Context, message domain.Message) error
	// ListByChannel returns up to limit messages, newest first, strictly
	// older than before when set.
	ListByChannel(ctx context.Context, channel domain.ChannelID, limit int, before *time.Time) ([]domain.Message, error)
	// ListByUser returns up to limit messages authored by user, newest first.
	ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.Message, error)
}

// EventPublisher pushes chat events onto the sharded bus.
type EventPublisher interface {
	PublishChatEvent(ctx context.Context, channel domain.ChannelID, event domain.ChatEvent) error
}

// UserReplicaStore holds the local read model of identity users.
type UserReplicaStore interface {
	// Upsert writes the replica row, preserving created_at on update.
	Upsert(ctx context.Context, replica domain.UserReplica) error
	// Get returns the replica or domain.ErrUserNotFound.
	Get(ctx context.Context, id domain.UserID) (domain.UserReplica, error)
	// Delete removes the row, returning domain.ErrUserNotFound when absent.
	Delete(ctx context.Context, id domain.UserID) error
}

// UserDirectory is the last-resort remote lookup used when the replica
// has no row yet. Steady-state reads never touch it.
type UserDirectory interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.UserReplica, error)
}
