package domain

import (
	"fmt"
	"net/mail"
	"time"
	"unicode/utf8"
)

// Username validation failures.
var (
	ErrUsernameTooShort          = &ValidationError{Field: "username", Reason: "must be at least 3 characters"}
	ErrUsernameTooLong           = &ValidationError{Field: "username", Reason: "must be at most 32 characters"}
	ErrUsernameInvalidCharacters = &ValidationError{Field: "username", Reason: "may only contain letters, digits, '_' and '-'"}
)

// ErrEmailInvalidFormat rejects strings that are not RFC 5322 addresses.
var ErrEmailInvalidFormat = &ValidationError{Field: "email_address", Reason: "not a valid email address"}

const (
	usernameMinLen = 3
	usernameMaxLen = 32
)

// Username is a globally unique handle, 3-32 code points drawn from
// [A-Za-z0-9_-]. Validated at construction.
type Username struct {
	value string
}

// NewUsername validates raw and returns the value object.
func NewUsername(raw string) (Username, error) {
	n := utf8.RuneCountInString(raw)
	if n < usernameMinLen {
		return Username{}, fmt.Errorf("%w (got %d)", ErrUsernameTooShort, n)
	}
	if n > usernameMaxLen {
		return Username{}, fmt.Errorf("%w (got %d)", ErrUsernameTooLong, n)
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return Username{}, ErrUsernameInvalidCharacters
		}
	}
	return Username{value: raw}, nil
}

func (u Username) String() string { return u.value }

// EmailAddress is a validated RFC-compliant address.
type EmailAddress struct {
	value string
}

// NewEmailAddress validates raw and returns the value object.
func NewEmailAddress(raw string) (EmailAddress, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return EmailAddress{}, ErrEmailInvalidFormat
	}
	return EmailAddress{value: raw}, nil
}

func (e EmailAddress) String() string { return e.value }

// User is the identity-service aggregate. PasswordHash is an opaque PHC
// string; the domain never inspects it.
type User struct {
	ID           UserID
	Username     Username
	Email        EmailAddress
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserReplica is the chat-service read model of a user, rebuilt from the
// user event stream. The authoritative copy lives in the identity service;
// stale reads are acceptable.
type UserReplica struct {
	ID        UserID
	Username  Username
	CreatedAt time.Time
	UpdatedAt time.Time
	SyncedAt  time.Time
}
