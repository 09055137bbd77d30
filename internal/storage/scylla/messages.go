// Package scylla holds the wide-column message store. Messages are
// written to two query tables, one clustered per channel and one per
// author, both ordered newest-first by the timeuuid message id.
package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/driftchat/drift/internal/domain"
)

const createKeyspace = `
CREATE KEYSPACE IF NOT EXISTS %s
WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`

var createTables = []string{
	`CREATE TABLE IF NOT EXISTS messages_by_channel (
		channel_id uuid,
		message_id timeuuid,
		user_id    uuid,
		content    text,
		created_at timestamp,
		PRIMARY KEY (channel_id, message_id)
	) WITH CLUSTERING ORDER BY (message_id DESC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_user (
		user_id    uuid,
		message_id timeuuid,
		channel_id uuid,
		content    text,
		created_at timestamp,
		PRIMARY KEY (user_id, message_id)
	) WITH CLUSTERING ORDER BY (message_id DESC)`,
}

// Connect bootstraps the keyspace and tables and returns a session bound
// to the keyspace.
func Connect(hosts []string, keyspace string, timeout time.Duration) (*gocql.Session, error) {
	boot := gocql.NewCluster(hosts...)
	boot.Timeout = timeout
	bootSession, err := boot.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect message store: %w", err)
	}
	if err := bootSession.Query(fmt.Sprintf(createKeyspace, keyspace)).Exec(); err != nil {
		bootSession.Close()
		return nil, fmt.Errorf("create keyspace: %w", err)
	}
	bootSession.Close()

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Timeout = timeout
	cluster.Consistency = gocql.Quorum
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect message store keyspace: %w", err)
	}
	for _, ddl := range createTables {
		if err := session.Query(ddl).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("create message tables: %w", err)
		}
	}
	return session, nil
}

// MessageStore reads and writes the message tables.
type MessageStore struct {
	session *gocql.Session
}

// NewMessageStore wraps the session.
func NewMessageStore(session *gocql.Session) *MessageStore {
	return &MessageStore{session: session}
}

func toCQL[T ~[16]byte](id T) gocql.UUID { return gocql.UUID(id) }

// Insert writes the message to both query tables. The writes are not
// atomic across tables; a partial failure surfaces as ErrDatabase and the
// caller treats the message as unsent.
func (s *MessageStore) Insert(ctx context.Context, message domain.Message) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO messages_by_channel (channel_id, message_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		toCQL(message.ChannelID), toCQL(message.ID), toCQL(message.UserID),
		message.Content.String(), message.Timestamp)
	batch.Query(`
		INSERT INTO messages_by_user (user_id, message_id, channel_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		toCQL(message.UserID), toCQL(message.ID), toCQL(message.ChannelID),
		message.Content.String(), message.Timestamp)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	return nil
}

// ListByChannel returns up to limit messages in channel, newest first,
// strictly older than before when set. The cursor compares timeuuids, so
// "older than t" is "smaller than the least timeuuid at t".
func (s *MessageStore) ListByChannel(ctx context.Context, channel domain.ChannelID, limit int, before *time.Time) ([]domain.Message, error) {
	var iter *gocql.Iter
	if before != nil {
		iter = s.session.Query(`
			SELECT channel_id, message_id, user_id, content, created_at
			FROM messages_by_channel
			WHERE channel_id = ? AND message_id < minTimeuuid(?)
			LIMIT ?`, toCQL(channel), *before, limit).WithContext(ctx).Iter()
	} else {
		iter = s.session.Query(`
			SELECT channel_id, message_id, user_id, content, created_at
			FROM messages_by_channel
			WHERE channel_id = ?
			LIMIT ?`, toCQL(channel), limit).WithContext(ctx).Iter()
	}
	return s.collect(iter, func(m *domain.Message, channelID, messageID, userID gocql.UUID) {
		m.ChannelID = domain.ChannelID(channelID)
		m.ID = domain.MessageID(messageID)
		m.UserID = domain.UserID(userID)
	})
}

// ListByUser returns up to limit messages authored by user, newest first.
func (s *MessageStore) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.Message, error) {
	iter := s.session.Query(`
		SELECT user_id, message_id, channel_id, content, created_at
		FROM messages_by_user
		WHERE user_id = ?
		LIMIT ?`, toCQL(user), limit).WithContext(ctx).Iter()
	return s.collect(iter, func(m *domain.Message, userID, messageID, channelID gocql.UUID) {
		m.UserID = domain.UserID(userID)
		m.ID = domain.MessageID(messageID)
		m.ChannelID = domain.ChannelID(channelID)
	})
}

func (s *MessageStore) collect(iter *gocql.Iter, assign func(*domain.Message, gocql.UUID, gocql.UUID, gocql.UUID)) ([]domain.Message, error) {
	var (
		messages             []domain.Message
		first, second, third gocql.UUID
		content              string
		createdAt            time.Time
	)
	for iter.Scan(&first, &second, &third, &content, &createdAt) {
		var message domain.Message
		assign(&message, first, second, third)
		body, err := domain.NewMessageContent(content)
		if err != nil {
			iter.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
		}
		message.Content = body
		message.Timestamp = createdAt.UTC()
		messages = append(messages, message)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabase, err)
	}
	return messages, nil
}
