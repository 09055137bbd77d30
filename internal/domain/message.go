package domain

import (
	"fmt"
	"time"
)

// MessageContent validation failures.
var (
	ErrMessageContentEmpty   = &ValidationError{Field: "content", Reason: "must not be empty"}
	ErrMessageContentTooLong = &ValidationError{Field: "content", Reason: "must be at most 4000 bytes"}
)

const messageContentMaxLen = 4000

// MessageContent is a validated message body, 1-4000 bytes.
type MessageContent struct {
	value string
}

// NewMessageContent validates raw and returns the value object.
func NewMessageContent(raw string) (MessageContent, error) {
	switch n := len(raw); {
	case n == 0:
		return MessageContent{}, ErrMessageContentEmpty
	case n > messageContentMaxLen:
		return MessageContent{}, fmt.Errorf("%w (got %d)", ErrMessageContentTooLong, n)
	}
	return MessageContent{value: raw}, nil
}

func (c MessageContent) String() string { return c.value }

// Message is an immutable chat message. It always references a channel
// that existed at write time; the stores are not foreign-keyed across
// service boundaries, so the send path pre-checks the channel.
type Message struct {
	ID        MessageID
	ChannelID ChannelID
	UserID    UserID
	Content   MessageContent
	Timestamp time.Time
}
