package domain

import "errors"

// Sentinel errors shared across services. Adapters wrap their driver
// errors into these so the HTTP boundary can map them without importing
// driver packages.
var (
	ErrChannelNotFound       = errors.New("channel not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrNameAlreadyExists     = errors.New("channel name already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrEmailAlreadyExists    = errors.New("email address already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrDatabase              = errors.New("database error")
	ErrServiceUnavailable    = errors.New("service unavailable")
	ErrNotAMember            = errors.New("user is not a member of the channel")
)

// ValidationError reports a value-object construction failure. The HTTP
// layer maps it to 422 regardless of which value object rejected the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
