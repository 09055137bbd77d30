package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/eventbus"
	"github.com/driftchat/drift/internal/metrics"
)

// ReplicaProjector applies the identity event stream to the local user
// replica. Its consumer group starts at the earliest offset so a fresh
// chat instance replays the full stream and warms up from nothing.
// Every handler is idempotent under redelivery.
type ReplicaProjector struct {
	replicas UserReplicaStore
	channels ChannelStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewReplicaProjector wires the projector.
func NewReplicaProjector(replicas UserReplicaStore, channels ChannelStore, m *metrics.Metrics, logger zerolog.Logger) *ReplicaProjector {
	return &ReplicaProjector{replicas: replicas, channels: channels, metrics: m, logger: logger}
}

// HandleRecord is the bus consumer callback for the user events topic.
func (p *ReplicaProjector) HandleRecord(ctx context.Context, record *kgo.Record) {
	event, err := eventbus.DecodeUserEvent(record.Value)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", record.Topic).
			Msg("Skipping undecodable user event")
		return
	}
	p.metrics.EventConsumed(event.EventType())

	switch ev := event.(type) {
	case domain.UserCreatedEvent:
		p.applyCreated(ctx, ev)
	case domain.UserUpdatedEvent:
		p.applyUpdated(ctx, ev)
	case domain.UserDeletedEvent:
		p.applyDeleted(ctx, ev)
	}
}

func (p *ReplicaProjector) applyCreated(ctx context.Context, ev domain.UserCreatedEvent) {
	username, err := domain.NewUsername(ev.Username)
	if err != nil {
		p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Skipping user_created with invalid username")
		return
	}
	replica := domain.UserReplica{
		ID:        ev.UserID,
		Username:  username,
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.CreatedAt,
		SyncedAt:  time.Now().UTC(),
	}
	if err := p.replicas.Upsert(ctx, replica); err != nil {
		p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Failed to upsert replica")
	}
}

func (p *ReplicaProjector) applyUpdated(ctx context.Context, ev domain.UserUpdatedEvent) {
	username, err := domain.NewUsername(ev.Username)
	if err != nil {
		p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Skipping user_updated with invalid username")
		return
	}

	createdAt := ev.UpdatedAt
	if prior, err := p.replicas.Get(ctx, ev.UserID); err == nil {
		createdAt = prior.CreatedAt
	} else if errors.Is(err, domain.ErrUserNotFound) {
		// Out-of-order delivery: the update arrived before the create.
		p.logger.Warn().Str("user_id", ev.UserID.String()).Msg("user_updated for unknown replica, stamping created_at now")
	}

	replica := domain.UserReplica{
		ID:        ev.UserID,
		Username:  username,
		CreatedAt: createdAt,
		UpdatedAt: ev.UpdatedAt,
		SyncedAt:  time.Now().UTC(),
	}
	if err := p.replicas.Upsert(ctx, replica); err != nil {
		p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Failed to upsert replica")
	}
}

func (p *ReplicaProjector) applyDeleted(ctx context.Context, ev domain.UserDeletedEvent) {
	if err := p.replicas.Delete(ctx, ev.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			p.logger.Warn().Str("user_id", ev.UserID.String()).Msg("user_deleted for unknown replica")
		} else {
			p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Failed to delete replica")
			return
		}
	}
	// Cascade: strip memberships and channels owned by the deleted user.
	// Messages stay; they reference the user by id only.
	if err := p.channels.RemoveUser(ctx, ev.UserID); err != nil {
		p.logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("Failed to cascade user deletion")
	}
}
