// Package postgres holds the relational adapters: channels and replica
// rows for the chat service, accounts for the identity service.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/drift/internal/domain"
)

// Connect opens a pool against url with the given size.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const chatSchema = `
CREATE TABLE IF NOT EXISTS channels (
	id           UUID PRIMARY KEY,
	channel_type TEXT NOT NULL,
	name         TEXT,
	description  TEXT,
	created_by   UUID NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS channels_public_name_key
	ON channels (name) WHERE channel_type = 'public';

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	user_id    UUID NOT NULL,
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS direct_channel_participants (
	channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	user_id    UUID NOT NULL,
	PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS user_replica (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	synced_at  TIMESTAMPTZ NOT NULL
);
`

const identitySchema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CONSTRAINT users_username_key UNIQUE (username),
	CONSTRAINT users_email_key UNIQUE (email)
);
`

// EnsureChatSchema creates the chat-side tables when absent.
func EnsureChatSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, chatSchema); err != nil {
		return fmt.Errorf("ensure chat schema: %w", err)
	}
	return nil
}

// EnsureIdentitySchema creates the identity-side tables when absent.
func EnsureIdentitySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, identitySchema); err != nil {
		return fmt.Errorf("ensure identity schema: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

// uniqueConstraint returns the violated constraint name, or "" when err
// is not a unique violation.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// storeErr wraps driver failures behind the shared sentinel so callers
// never branch on pgx types.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
}
