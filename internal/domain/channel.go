package domain

import (
	"fmt"
	"time"
)

// ChannelName validation failures.
var (
	ErrChannelNameEmpty   = &ValidationError{Field: "name", Reason: "must not be empty"}
	ErrChannelNameTooLong = &ValidationError{Field: "name", Reason: "must be at most 100 bytes"}
)

const channelNameMaxLen = 100

// ChannelName is a validated channel name, 1-100 bytes. Direct channels
// have no name; public channel names are unique across the service.
type ChannelName struct {
	value string
}

// NewChannelName validates raw and returns the value object.
func NewChannelName(raw string) (ChannelName, error) {
	switch n := len(raw); {
	case n == 0:
		return ChannelName{}, ErrChannelNameEmpty
	case n > channelNameMaxLen:
		return ChannelName{}, fmt.Errorf("%w (got %d)", ErrChannelNameTooLong, n)
	}
	return ChannelName{value: raw}, nil
}

func (n ChannelName) String() string { return n.value }

// ChannelType discriminates the channel variants.
type ChannelType string

const (
	ChannelTypePublic  ChannelType = "public"
	ChannelTypePrivate ChannelType = "private"
	ChannelTypeDirect  ChannelType = "direct"
)

// Channel is the tagged-variant surface shared by all channel kinds.
// Variant-specific fields (private members, direct participants) are
// reached by switching on the concrete type.
type Channel interface {
	ID() ChannelID
	Type() ChannelType
	CreatedBy() UserID
	CreatedAt() time.Time
	// Name reports the channel name; ok is false for direct channels.
	Name() (ChannelName, bool)
	// Description reports the optional description; ok is false when unset
	// or for direct channels.
	Description() (string, bool)

	isChannel()
}

// PublicChannel is open to every user.
type PublicChannel struct {
	id          ChannelID
	name        ChannelName
	description *string
	createdBy   UserID
	createdAt   time.Time
}

// NewPublicChannel assembles a public channel from already-validated parts.
func NewPublicChannel(id ChannelID, name ChannelName, description *string, createdBy UserID, createdAt time.Time) *PublicChannel {
	return &PublicChannel{id: id, name: name, description: description, createdBy: createdBy, createdAt: createdAt}
}

func (c *PublicChannel) ID() ChannelID          { return c.id }
func (c *PublicChannel) Type() ChannelType      { return ChannelTypePublic }
func (c *PublicChannel) CreatedBy() UserID      { return c.createdBy }
func (c *PublicChannel) CreatedAt() time.Time   { return c.createdAt }
func (c *PublicChannel) Name() (ChannelName, bool) { return c.name, true }
func (c *PublicChannel) Description() (string, bool) {
	if c.description == nil {
		return "", false
	}
	return *c.description, true
}
func (c *PublicChannel) isChannel() {}

// PrivateChannel restricts access to an explicit member set.
type PrivateChannel struct {
	id          ChannelID
	name        ChannelName
	description *string
	createdBy   UserID
	createdAt   time.Time
	members     []UserID
}

// NewPrivateChannel assembles a private channel. The creator is expected
// to be part of members; the store enforces it on create.
func NewPrivateChannel(id ChannelID, name ChannelName, description *string, createdBy UserID, createdAt time.Time, members []UserID) *PrivateChannel {
	return &PrivateChannel{id: id, name: name, description: description, createdBy: createdBy, createdAt: createdAt, members: members}
}

func (c *PrivateChannel) ID() ChannelID          { return c.id }
func (c *PrivateChannel) Type() ChannelType      { return ChannelTypePrivate }
func (c *PrivateChannel) CreatedBy() UserID      { return c.createdBy }
func (c *PrivateChannel) CreatedAt() time.Time   { return c.createdAt }
func (c *PrivateChannel) Name() (ChannelName, bool) { return c.name, true }
func (c *PrivateChannel) Description() (string, bool) {
	if c.description == nil {
		return "", false
	}
	return *c.description, true
}

// Members returns a copy of the member set.
func (c *PrivateChannel) Members() []UserID {
	out := make([]UserID, len(c.members))
	copy(out, c.members)
	return out
}

// HasMember reports whether id belongs to the member set.
func (c *PrivateChannel) HasMember(id UserID) bool {
	for _, m := range c.members {
		if m == id {
			return true
		}
	}
	return false
}
func (c *PrivateChannel) isChannel() {}

// DirectChannel is a one-to-one conversation. It carries no name.
type DirectChannel struct {
	id           ChannelID
	createdBy    UserID
	createdAt    time.Time
	participants [2]UserID
}

// NewDirectChannel assembles a direct channel between two participants.
func NewDirectChannel(id ChannelID, createdBy UserID, createdAt time.Time, participants [2]UserID) *DirectChannel {
	return &DirectChannel{id: id, createdBy: createdBy, createdAt: createdAt, participants: participants}
}

func (c *DirectChannel) ID() ChannelID              { return c.id }
func (c *DirectChannel) Type() ChannelType          { return ChannelTypeDirect }
func (c *DirectChannel) CreatedBy() UserID          { return c.createdBy }
func (c *DirectChannel) CreatedAt() time.Time       { return c.createdAt }
func (c *DirectChannel) Name() (ChannelName, bool)  { return ChannelName{}, false }
func (c *DirectChannel) Description() (string, bool) { return "", false }

// Participants returns both ends of the conversation.
func (c *DirectChannel) Participants() [2]UserID { return c.participants }
func (c *DirectChannel) isChannel()              {}

// CreateChannelCommand is the tagged union accepted by the channel service.
type CreateChannelCommand interface {
	isCreateChannelCommand()
}

// CreatePublicChannel requests a public channel.
type CreatePublicChannel struct {
	Name        ChannelName
	Description *string
}

// CreatePrivateChannel requests a private channel with an initial member
// set. The creator is added implicitly.
type CreatePrivateChannel struct {
	Name        ChannelName
	Description *string
	Members     []UserID
}

// CreateDirectChannel requests a direct conversation with one participant;
// the creator is the other.
type CreateDirectChannel struct {
	Participant UserID
}

func (CreatePublicChannel) isCreateChannelCommand()  {}
func (CreatePrivateChannel) isCreateChannelCommand() {}
func (CreateDirectChannel) isCreateChannelCommand()  {}
