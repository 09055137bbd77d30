package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/drift/internal/domain"
)

// ChannelStore is the relational channel adapter. Channels live in one
// table discriminated by channel_type; private membership and direct
// participants live in side tables keyed by channel id.
type ChannelStore struct {
	pool *pgxpool.Pool
}

// NewChannelStore wraps the pool.
func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// Create inserts the channel and its side rows in one transaction.
func (s *ChannelStore) Create(ctx context.Context, channel domain.Channel) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	var name, description *string
	if n, ok := channel.Name(); ok {
		v := n.String()
		name = &v
	}
	if d, ok := channel.Description(); ok {
		description = &d
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO channels (id, channel_type, name, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		channel.ID().String(), string(channel.Type()), name, description,
		channel.CreatedBy().String(), channel.CreatedAt())
	if err != nil {
		if uniqueConstraint(err) == "channels_public_name_key" {
			return domain.ErrNameAlreadyExists
		}
		return storeErr(err)
	}

	switch c := channel.(type) {
	case *domain.PrivateChannel:
		for _, member := range c.Members() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO channel_members (channel_id, user_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				channel.ID().String(), member.String()); err != nil {
				return storeErr(err)
			}
		}
	case *domain.DirectChannel:
		for _, participant := range c.Participants() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO direct_channel_participants (channel_id, user_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				channel.ID().String(), participant.String()); err != nil {
				return storeErr(err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

type channelRow struct {
	id          string
	channelType string
	name        *string
	description *string
	createdBy   string
	createdAt   time.Time
}

const channelColumns = `id, channel_type, name, description, created_by, created_at`

// Get returns the channel or domain.ErrChannelNotFound.
func (s *ChannelStore) Get(ctx context.Context, id domain.ChannelID) (domain.Channel, error) {
	var row channelRow
	err := s.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id.String()).
		Scan(&row.id, &row.channelType, &row.name, &row.description, &row.createdBy, &row.createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return s.hydrate(ctx, row)
}

// ListPublic returns all public channels, newest first.
func (s *ChannelStore) ListPublic(ctx context.Context) ([]domain.Channel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE channel_type = 'public' ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return s.collect(ctx, rows)
}

// ListForUser returns channels the user created, is a member of or a
// participant in, newest first.
func (s *ChannelStore) ListForUser(ctx context.Context, user domain.UserID) ([]domain.Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE created_by = $1
		   OR id IN (SELECT channel_id FROM channel_members WHERE user_id = $1)
		   OR id IN (SELECT channel_id FROM direct_channel_participants WHERE user_id = $1)
		ORDER BY created_at DESC`, user.String())
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	return s.collect(ctx, rows)
}

// AddMember records membership; re-adding is a no-op.
func (s *ChannelStore) AddMember(ctx context.Context, channel domain.ChannelID, user domain.UserID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channel_members (channel_id, user_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		channel.String(), user.String())
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// RemoveMember drops the membership row; missing rows are a no-op.
func (s *ChannelStore) RemoveMember(ctx context.Context, channel domain.ChannelID, user domain.UserID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`,
		channel.String(), user.String())
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// RemoveUser strips the user from every membership table and deletes the
// channels they created. The side rows of deleted channels go with them
// through the foreign keys.
func (s *ChannelStore) RemoveUser(ctx context.Context, user domain.UserID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM channel_members WHERE user_id = $1`,
		`DELETE FROM direct_channel_participants WHERE user_id = $1`,
		`DELETE FROM channels WHERE created_by = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, user.String()); err != nil {
			return storeErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *ChannelStore) collect(ctx context.Context, rows pgx.Rows) ([]domain.Channel, error) {
	var raw []channelRow
	for rows.Next() {
		var row channelRow
		if err := rows.Scan(&row.id, &row.channelType, &row.name, &row.description, &row.createdBy, &row.createdAt); err != nil {
			return nil, storeErr(err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	channels := make([]domain.Channel, 0, len(raw))
	for _, row := range raw {
		channel, err := s.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

// hydrate builds the domain variant for one row, loading side tables for
// private and direct channels.
func (s *ChannelStore) hydrate(ctx context.Context, row channelRow) (domain.Channel, error) {
	id, err := domain.ParseChannelID(row.id)
	if err != nil {
		return nil, storeErr(err)
	}
	createdBy, err := domain.ParseUserID(row.createdBy)
	if err != nil {
		return nil, storeErr(err)
	}

	switch domain.ChannelType(row.channelType) {
	case domain.ChannelTypePublic:
		name, err := s.rowName(row)
		if err != nil {
			return nil, err
		}
		return domain.NewPublicChannel(id, name, row.description, createdBy, row.createdAt), nil

	case domain.ChannelTypePrivate:
		name, err := s.rowName(row)
		if err != nil {
			return nil, err
		}
		members, err := s.sideUsers(ctx, `SELECT user_id FROM channel_members WHERE channel_id = $1`, id)
		if err != nil {
			return nil, err
		}
		return domain.NewPrivateChannel(id, name, row.description, createdBy, row.createdAt, members), nil

	case domain.ChannelTypeDirect:
		participants, err := s.sideUsers(ctx, `SELECT user_id FROM direct_channel_participants WHERE channel_id = $1`, id)
		if err != nil {
			return nil, err
		}
		if len(participants) != 2 {
			return nil, storeErr(fmt.Errorf("direct channel %s has %d participants", row.id, len(participants)))
		}
		return domain.NewDirectChannel(id, createdBy, row.createdAt, [2]domain.UserID{participants[0], participants[1]}), nil

	default:
		return nil, storeErr(fmt.Errorf("unknown channel type %q for %s", row.channelType, row.id))
	}
}

func (s *ChannelStore) rowName(row channelRow) (domain.ChannelName, error) {
	if row.name == nil {
		return domain.ChannelName{}, storeErr(fmt.Errorf("channel %s has no name", row.id))
	}
	name, err := domain.NewChannelName(*row.name)
	if err != nil {
		return domain.ChannelName{}, storeErr(err)
	}
	return name, nil
}

func (s *ChannelStore) sideUsers(ctx context.Context, query string, channel domain.ChannelID) ([]domain.UserID, error) {
	rows, err := s.pool.Query(ctx, query, channel.String())
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var users []domain.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storeErr(err)
		}
		user, err := domain.ParseUserID(raw)
		if err != nil {
			return nil, storeErr(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}
