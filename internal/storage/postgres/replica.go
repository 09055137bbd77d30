package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/drift/internal/domain"
)

// ReplicaStore is the chat-side user read model adapter.
type ReplicaStore struct {
	pool *pgxpool.Pool
}

// NewReplicaStore wraps the pool.
func NewReplicaStore(pool *pgxpool.Pool) *ReplicaStore {
	return &ReplicaStore{pool: pool}
}

// Upsert writes the replica row. On conflict the insert-time created_at
// is kept; everything else is replaced. Safe under redelivery.
func (s *ReplicaStore) Upsert(ctx context.Context, replica domain.UserReplica) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_replica (id, username, created_at, updated_at, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username   = EXCLUDED.username,
			updated_at = EXCLUDED.updated_at,
			synced_at  = EXCLUDED.synced_at`,
		replica.ID.String(), replica.Username.String(),
		replica.CreatedAt, replica.UpdatedAt, replica.SyncedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get returns the replica or domain.ErrUserNotFound.
func (s *ReplicaStore) Get(ctx context.Context, id domain.UserID) (domain.UserReplica, error) {
	var (
		rawID, username string
		replica         domain.UserReplica
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, created_at, updated_at, synced_at
		FROM user_replica WHERE id = $1`, id.String()).
		Scan(&rawID, &username, &replica.CreatedAt, &replica.UpdatedAt, &replica.SyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserReplica{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserReplica{}, storeErr(err)
	}

	if replica.ID, err = domain.ParseUserID(rawID); err != nil {
		return domain.UserReplica{}, storeErr(err)
	}
	if replica.Username, err = domain.NewUsername(username); err != nil {
		return domain.UserReplica{}, storeErr(err)
	}
	return replica, nil
}

// Delete removes the row, returning domain.ErrUserNotFound when absent so
// the projector can log redeliveries.
func (s *ReplicaStore) Delete(ctx context.Context, id domain.UserID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_replica WHERE id = $1`, id.String())
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
