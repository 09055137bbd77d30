package domain

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

func init() {
	// Time-ordered message ids embed a node id. Derive it from the hostname
	// so two instances under identical clocks cannot mint the same id.
	host, err := os.Hostname()
	if err != nil {
		return // library falls back to a random node id
	}
	sum := sha256.Sum256([]byte(host))
	uuid.SetNodeID(sum[:6])
}

// UserID identifies a user. Owned by the identity service.
type UserID uuid.UUID

// NewUserID generates a random user id.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID parses the canonical 36-character textual form.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(id), nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }

// ChannelID identifies a channel. Owned by the chat service.
type ChannelID uuid.UUID

// NewChannelID generates a random channel id.
func NewChannelID() ChannelID {
	return ChannelID(uuid.New())
}

// ParseChannelID parses the canonical 36-character textual form.
func ParseChannelID(s string) (ChannelID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ChannelID{}, fmt.Errorf("invalid channel id %q: %w", s, err)
	}
	return ChannelID(id), nil
}

func (id ChannelID) String() string { return uuid.UUID(id).String() }

// MessageID is a time-ordered identifier (UUID v1). It doubles as the
// clustering key in the message store, so a per-channel scan comes back
// newest-first without a secondary sort on the timestamp column.
type MessageID uuid.UUID

// NewMessageID mints a time-ordered message id.
func NewMessageID() MessageID {
	id, err := uuid.NewUUID()
	if err != nil {
		// Clock sequence exhaustion is the only failure mode; a random id
		// loses time ordering for this one message but never blocks a send.
		id = uuid.New()
	}
	return MessageID(id)
}

// ParseMessageID parses the canonical 36-character textual form.
func ParseMessageID(s string) (MessageID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return MessageID(id), nil
}

func (id MessageID) String() string { return uuid.UUID(id).String() }

// Time extracts the embedded creation instant.
func (id MessageID) Time() time.Time {
	sec, nsec := uuid.UUID(id).Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}
