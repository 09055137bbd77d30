package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
)

// DefaultHistoryLimit applies when a history fetch does not name one.
const DefaultHistoryLimit = 50

// ChannelService is a stateless facade over the channel store.
type ChannelService struct {
	channels  ChannelStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewChannelService wires the facade.
func NewChannelService(channels ChannelStore, publisher EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *ChannelService {
	return &ChannelService{channels: channels, publisher: publisher, metrics: m, logger: logger}
}

// Create mints the channel for the given command and persists it. The
// creator is always part of a private channel's member set and one end of
// a direct channel.
func (s *ChannelService) Create(ctx context.Context, command domain.CreateChannelCommand, createdBy domain.UserID) (domain.Channel, error) {
	id := domain.NewChannelID()
	now := time.Now().UTC()

	var channel domain.Channel
	switch cmd := command.(type) {
	case domain.CreatePublicChannel:
		channel = domain.NewPublicChannel(id, cmd.Name, cmd.Description, createdBy, now)
	case domain.CreatePrivateChannel:
		members := cmd.Members
		hasCreator := false
		for _, m := range members {
			if m == createdBy {
				hasCreator = true
				break
			}
		}
		if !hasCreator {
			members = append(append([]domain.UserID{}, members...), createdBy)
		}
		channel = domain.NewPrivateChannel(id, cmd.Name, cmd.Description, createdBy, now, members)
	case domain.CreateDirectChannel:
		channel = domain.NewDirectChannel(id, createdBy, now, [2]domain.UserID{createdBy, cmd.Participant})
	default:
		return nil, fmt.Errorf("unsupported channel command %T", command)
	}

	if err := s.channels.Create(ctx, channel); err != nil {
		return nil, err
	}

	event := domain.NewChannelCreatedEvent(channel)
	if err := s.publisher.PublishChatEvent(ctx, channel.ID(), event); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error().Err(err).Str("channel_id", channel.ID().String()).Msg("Failed to publish channel_created")
	} else {
		s.metrics.EventPublished(event.EventType())
	}
	return channel, nil
}

// Get returns the channel or domain.ErrChannelNotFound.
func (s *ChannelService) Get(ctx context.Context, id domain.ChannelID) (domain.Channel, error) {
	return s.channels.Get(ctx, id)
}

// ListPublic returns all public channels, newest first.
func (s *ChannelService) ListPublic(ctx context.Context) ([]domain.Channel, error) {
	return s.channels.ListPublic(ctx)
}

// ListForUser returns the channels visible to user, newest first.
func (s *ChannelService) ListForUser(ctx context.Context, user domain.UserID) ([]domain.Channel, error) {
	return s.channels.ListForUser(ctx, user)
}

// Join adds user to a private channel and announces it. Public channels
// need no membership row; joining one is a no-op success. Direct channels
// cannot be joined.
func (s *ChannelService) Join(ctx context.Context, id domain.ChannelID, user domain.UserID) error {
	channel, err := s.channels.Get(ctx, id)
	if err != nil {
		return err
	}
	switch channel.Type() {
	case domain.ChannelTypePublic:
		return nil
	case domain.ChannelTypeDirect:
		return &domain.ValidationError{Field: "channel", Reason: "direct channels cannot be joined"}
	}
	if err := s.channels.AddMember(ctx, id, user); err != nil {
		return err
	}
	s.announce(ctx, id, domain.NewUserJoinedChannelEvent(id, user))
	return nil
}

// Leave removes user from a private channel and announces it.
func (s *ChannelService) Leave(ctx context.Context, id domain.ChannelID, user domain.UserID) error {
	channel, err := s.channels.Get(ctx, id)
	if err != nil {
		return err
	}
	if channel.Type() != domain.ChannelTypePrivate {
		return &domain.ValidationError{Field: "channel", Reason: "only private channels have explicit membership"}
	}
	if err := s.channels.RemoveMember(ctx, id, user); err != nil {
		return err
	}
	s.announce(ctx, id, domain.NewUserLeftChannelEvent(id, user))
	return nil
}

func (s *ChannelService) announce(ctx context.Context, channel domain.ChannelID, event domain.ChatEvent) {
	if err := s.publisher.PublishChatEvent(ctx, channel, event); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error().
			Err(err).
			Str("event_type", event.EventType()).
			Str("channel_id", channel.String()).
			Msg("Failed to publish membership event")
		return
	}
	s.metrics.EventPublished(event.EventType())
}

// MessageService coordinates the critical write path.
type MessageService struct {
	channels  ChannelStore
	messages  MessageStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewMessageService wires the write path.
func NewMessageService(channels ChannelStore, messages MessageStore, publisher EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *MessageService {
	return &MessageService{channels: channels, messages: messages, publisher: publisher, metrics: m, logger: logger}
}

// Send persists and fans out one message. The store write is the
// durability commit point: a publish failure after it is logged and the
// message still counts as sent, retrievable by history fetch.
func (s *MessageService) Send(ctx context.Context, channel domain.ChannelID, user domain.UserID, content domain.MessageContent) (domain.Message, error) {
	if _, err := s.channels.Get(ctx, channel); err != nil {
		return domain.Message{}, err
	}

	message := domain.Message{
		ID:        domain.NewMessageID(),
		ChannelID: channel,
		UserID:    user,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, message); err != nil {
		return domain.Message{}, err
	}
	s.metrics.MessageStored()

	event := domain.NewMessageSentEvent(message)
	if err := s.publisher.PublishChatEvent(ctx, channel, event); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error().
			Err(err).
			Str("message_id", message.ID.String()).
			Str("channel_id", channel.String()).
			Msg("Message stored but publish failed, live fan-out skipped")
	} else {
		s.metrics.EventPublished(event.EventType())
	}
	return message, nil
}

// History returns up to limit messages in channel, newest first, strictly
// older than before when set. limit <= 0 falls back to the default.
func (s *MessageService) History(ctx context.Context, channel domain.ChannelID, limit int, before *time.Time) ([]domain.Message, error) {
	if _, err := s.channels.Get(ctx, channel); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.messages.ListByChannel(ctx, channel, limit, before)
}

// UserMessages returns up to limit messages authored by user, newest first.
func (s *MessageService) UserMessages(ctx context.Context, user domain.UserID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.messages.ListByUser(ctx, user, limit)
}

// UserLookup resolves user display data for read-path enrichment: replica
// first, remote directory as a last resort. A directory hit warms the
// replica so the next lookup stays local.
type UserLookup struct {
	replicas  UserReplicaStore
	directory UserDirectory
	logger    zerolog.Logger
}

// NewUserLookup wires the lookup path. directory may be nil, in which
// case misses surface as domain.ErrUserNotFound.
func NewUserLookup(replicas UserReplicaStore, directory UserDirectory, logger zerolog.Logger) *UserLookup {
	return &UserLookup{replicas: replicas, directory: directory, logger: logger}
}

// Lookup returns the replica row for id, falling back to the remote
// directory on a local miss.
func (l *UserLookup) Lookup(ctx context.Context, id domain.UserID) (domain.UserReplica, error) {
	replica, err := l.replicas.Get(ctx, id)
	if err == nil {
		return replica, nil
	}
	if l.directory == nil {
		return domain.UserReplica{}, err
	}

	replica, err = l.directory.GetUser(ctx, id)
	if err != nil {
		return domain.UserReplica{}, err
	}
	if err := l.replicas.Upsert(ctx, replica); err != nil {
		l.logger.Warn().Err(err).Str("user_id", id.String()).Msg("Failed to warm replica from directory")
	}
	return replica, nil
}
