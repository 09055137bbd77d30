package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/driftchat/drift/internal/domain"
)

// Envelope decoding failures.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("malformed event payload")
)

// The wire envelopes mirror the domain events one-to-one, with an
// event_type discriminator so a single topic can carry the whole family.
// Field names are snake_case on the wire.

type messageSentEnvelope struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type channelCreatedEnvelope struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	ChannelID   string    `json:"channel_id"`
	ChannelType string    `json:"channel_type"`
	Name        *string   `json:"name,omitempty"`
	CreatedBy   string    `json:"created_by"`
	Timestamp   time.Time `json:"timestamp"`
}

type channelMembershipEnvelope struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type userCreatedEnvelope struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type userUpdatedEnvelope struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

type userDeletedEnvelope struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// EncodeChatEvent serializes a chat event into its wire envelope.
func EncodeChatEvent(ev domain.ChatEvent) ([]byte, error) {
	switch e := ev.(type) {
	case domain.MessageSentEvent:
		return json.Marshal(messageSentEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			MessageID: e.MessageID.String(),
			ChannelID: e.ChannelID.String(),
			UserID:    e.UserID.String(),
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	case domain.ChannelCreatedEvent:
		return json.Marshal(channelCreatedEnvelope{
			EventType:   e.EventType(),
			EventID:     e.ID,
			ChannelID:   e.ChannelID.String(),
			ChannelType: string(e.ChannelType),
			Name:        e.Name,
			CreatedBy:   e.CreatedBy.String(),
			Timestamp:   e.Timestamp,
		})
	case domain.UserJoinedChannelEvent:
		return json.Marshal(channelMembershipEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			ChannelID: e.ChannelID.String(),
			UserID:    e.UserID.String(),
			Timestamp: e.Timestamp,
		})
	case domain.UserLeftChannelEvent:
		return json.Marshal(channelMembershipEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			ChannelID: e.ChannelID.String(),
			UserID:    e.UserID.String(),
			Timestamp: e.Timestamp,
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}
}

// DecodeChatEvent parses a wire envelope back into a domain chat event.
func DecodeChatEvent(data []byte) (domain.ChatEvent, error) {
	var head struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch head.EventType {
	case "message_sent":
		var env messageSentEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		messageID, err := domain.ParseMessageID(env.MessageID)
		if err != nil {
			return nil, fmt.Errorf("%w: message_id: %v", ErrMalformedEvent, err)
		}
		channelID, err := domain.ParseChannelID(env.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("%w: channel_id: %v", ErrMalformedEvent, err)
		}
		userID, err := domain.ParseUserID(env.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedEvent, err)
		}
		return domain.MessageSentEvent{
			ID:        env.EventID,
			MessageID: messageID,
			ChannelID: channelID,
			UserID:    userID,
			Content:   env.Content,
			Timestamp: env.Timestamp,
		}, nil
	case "channel_created":
		var env channelCreatedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		channelID, err := domain.ParseChannelID(env.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("%w: channel_id: %v", ErrMalformedEvent, err)
		}
		createdBy, err := domain.ParseUserID(env.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("%w: created_by: %v", ErrMalformedEvent, err)
		}
		return domain.ChannelCreatedEvent{
			ID:          env.EventID,
			ChannelID:   channelID,
			ChannelType: domain.ChannelType(env.ChannelType),
			Name:        env.Name,
			CreatedBy:   createdBy,
			Timestamp:   env.Timestamp,
		}, nil
	case "user_joined_channel", "user_left_channel":
		var env channelMembershipEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		channelID, err := domain.ParseChannelID(env.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("%w: channel_id: %v", ErrMalformedEvent, err)
		}
		userID, err := domain.ParseUserID(env.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedEvent, err)
		}
		if head.EventType == "user_joined_channel" {
			return domain.UserJoinedChannelEvent{
				ID: env.EventID, ChannelID: channelID, UserID: userID, Timestamp: env.Timestamp,
			}, nil
		}
		return domain.UserLeftChannelEvent{
			ID: env.EventID, ChannelID: channelID, UserID: userID, Timestamp: env.Timestamp,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.EventType)
	}
}

// EncodeUserEvent serializes an identity event into its wire envelope.
func EncodeUserEvent(ev domain.UserEvent) ([]byte, error) {
	switch e := ev.(type) {
	case domain.UserCreatedEvent:
		return json.Marshal(userCreatedEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			UserID:    e.UserID.String(),
			Username:  e.Username,
			Email:     e.Email,
			CreatedAt: e.CreatedAt,
		})
	case domain.UserUpdatedEvent:
		return json.Marshal(userUpdatedEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			UserID:    e.UserID.String(),
			Username:  e.Username,
			Email:     e.Email,
			UpdatedAt: e.UpdatedAt,
		})
	case domain.UserDeletedEvent:
		return json.Marshal(userDeletedEnvelope{
			EventType: e.EventType(),
			EventID:   e.ID,
			UserID:    e.UserID.String(),
			DeletedAt: e.DeletedAt,
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}
}

// DecodeUserEvent parses a wire envelope back into a domain user event.
func DecodeUserEvent(data []byte) (domain.UserEvent, error) {
	var head struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch head.EventType {
	case "user_created":
		var env userCreatedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		userID, err := domain.ParseUserID(env.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedEvent, err)
		}
		return domain.UserCreatedEvent{
			ID: env.EventID, UserID: userID, Username: env.Username, Email: env.Email, CreatedAt: env.CreatedAt,
		}, nil
	case "user_updated":
		var env userUpdatedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		userID, err := domain.ParseUserID(env.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedEvent, err)
		}
		return domain.UserUpdatedEvent{
			ID: env.EventID, UserID: userID, Username: env.Username, Email: env.Email, UpdatedAt: env.UpdatedAt,
		}, nil
	case "user_deleted":
		var env userDeletedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		userID, err := domain.ParseUserID(env.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id: %v", ErrMalformedEvent, err)
		}
		return domain.UserDeletedEvent{ID: env.EventID, UserID: userID, DeletedAt: env.DeletedAt}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.EventType)
	}
}
