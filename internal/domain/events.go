package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain events are pure: no serialization tags. The bus boundary owns a
// parallel set of serializable envelopes with explicit converters, so the
// broker wire format never leaks in here.

// ChatEvent is an event emitted by the chat service.
type ChatEvent interface {
	EventID() string
	EventType() string
}

// MessageSentEvent records a message accepted onto the write path.
type MessageSentEvent struct {
	ID        string
	MessageID MessageID
	ChannelID ChannelID
	UserID    UserID
	Content   string
	Timestamp time.Time
}

// NewMessageSentEvent derives the event from a persisted message.
func NewMessageSentEvent(m Message) MessageSentEvent {
	return MessageSentEvent{
		ID:        uuid.NewString(),
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		Content:   m.Content.String(),
		Timestamp: m.Timestamp,
	}
}

func (e MessageSentEvent) EventID() string   { return e.ID }
func (e MessageSentEvent) EventType() string { return "message_sent" }

// ChannelCreatedEvent records a new channel.
type ChannelCreatedEvent struct {
	ID          string
	ChannelID   ChannelID
	ChannelType ChannelType
	Name        *string
	CreatedBy   UserID
	Timestamp   time.Time
}

// NewChannelCreatedEvent derives the event from a persisted channel.
func NewChannelCreatedEvent(c Channel) ChannelCreatedEvent {
	var name *string
	if n, ok := c.Name(); ok {
		s := n.String()
		name = &s
	}
	return ChannelCreatedEvent{
		ID:          uuid.NewString(),
		ChannelID:   c.ID(),
		ChannelType: c.Type(),
		Name:        name,
		CreatedBy:   c.CreatedBy(),
		Timestamp:   time.Now().UTC(),
	}
}

func (e ChannelCreatedEvent) EventID() string   { return e.ID }
func (e ChannelCreatedEvent) EventType() string { return "channel_created" }

// UserJoinedChannelEvent records a membership addition.
type UserJoinedChannelEvent struct {
	ID        string
	ChannelID ChannelID
	UserID    UserID
	Timestamp time.Time
}

func NewUserJoinedChannelEvent(channel ChannelID, user UserID) UserJoinedChannelEvent {
	return UserJoinedChannelEvent{ID: uuid.NewString(), ChannelID: channel, UserID: user, Timestamp: time.Now().UTC()}
}

func (e UserJoinedChannelEvent) EventID() string   { return e.ID }
func (e UserJoinedChannelEvent) EventType() string { return "user_joined_channel" }

// UserLeftChannelEvent records a membership removal.
type UserLeftChannelEvent struct {
	ID        string
	ChannelID ChannelID
	UserID    UserID
	Timestamp time.Time
}

func NewUserLeftChannelEvent(channel ChannelID, user UserID) UserLeftChannelEvent {
	return UserLeftChannelEvent{ID: uuid.NewString(), ChannelID: channel, UserID: user, Timestamp: time.Now().UTC()}
}

func (e UserLeftChannelEvent) EventID() string   { return e.ID }
func (e UserLeftChannelEvent) EventType() string { return "user_left_channel" }

// UserEvent is an event emitted by the identity service.
type UserEvent interface {
	EventID() string
	EventType() string
	SubjectID() UserID
}

// UserCreatedEvent announces a new user.
type UserCreatedEvent struct {
	ID        string
	UserID    UserID
	Username  string
	Email     string
	CreatedAt time.Time
}

func NewUserCreatedEvent(u User) UserCreatedEvent {
	return UserCreatedEvent{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username.String(),
		Email:     u.Email.String(),
		CreatedAt: u.CreatedAt,
	}
}

func (e UserCreatedEvent) EventID() string   { return e.ID }
func (e UserCreatedEvent) EventType() string { return "user_created" }
func (e UserCreatedEvent) SubjectID() UserID { return e.UserID }

// UserUpdatedEvent announces a changed user record.
type UserUpdatedEvent struct {
	ID        string
	UserID    UserID
	Username  string
	Email     string
	UpdatedAt time.Time
}

func NewUserUpdatedEvent(u User) UserUpdatedEvent {
	return UserUpdatedEvent{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username.String(),
		Email:     u.Email.String(),
		UpdatedAt: u.UpdatedAt,
	}
}

func (e UserUpdatedEvent) EventID() string   { return e.ID }
func (e UserUpdatedEvent) EventType() string { return "user_updated" }
func (e UserUpdatedEvent) SubjectID() UserID { return e.UserID }

// UserDeletedEvent announces a removed user. Consumers must eventually
// drop the replica row and any membership references.
type UserDeletedEvent struct {
	ID        string
	UserID    UserID
	DeletedAt time.Time
}

func NewUserDeletedEvent(id UserID) UserDeletedEvent {
	return UserDeletedEvent{ID: uuid.NewString(), UserID: id, DeletedAt: time.Now().UTC()}
}

func (e UserDeletedEvent) EventID() string   { return e.ID }
func (e UserDeletedEvent) EventType() string { return "user_deleted" }
func (e UserDeletedEvent) SubjectID() UserID { return e.UserID }
