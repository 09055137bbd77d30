package identity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
)

// Password bounds. The hash input is unbounded in principle; the cap
// keeps a hostile client from feeding megabytes into the hasher.
var (
	errPasswordTooShort = &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	errPasswordTooLong  = &domain.ValidationError{Field: "password", Reason: "must be at most 128 characters"}
)

func validatePassword(raw string) error {
	switch n := len(raw); {
	case n < 8:
		return errPasswordTooShort
	case n > 128:
		return errPasswordTooLong
	}
	return nil
}

// CreateUserCommand carries an already-validated registration.
type CreateUserCommand struct {
	Username domain.Username
	Email    domain.EmailAddress
	Password string
}

// UpdateUserCommand patches a user; nil fields are left unchanged.
type UpdateUserCommand struct {
	Username *domain.Username
	Email    *domain.EmailAddress
	Password *string
}

// Service implements the account lifecycle.
type Service struct {
	users     UserStore
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenHandler
	tokenTTL  time.Duration
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewService wires the identity core.
func NewService(users UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenHandler, tokenTTL time.Duration, publisher EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Create registers a user and announces it. Uniqueness violations come
// back from the store as the username/email sentinels.
func (s *Service) Create(ctx context.Context, cmd CreateUserCommand) (domain.User, error) {
	if err := validatePassword(cmd.Password); err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           domain.NewUserID(),
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return domain.User{}, err
	}

	s.announce(ctx, domain.NewUserCreatedEvent(user))
	return user, nil
}

// Authenticate verifies credentials and mints a signed token. Both "no
// such user" and "wrong password" come back as ErrInvalidCredentials so
// the endpoint cannot be used to enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, username domain.Username, password string) (domain.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Encode(auth.ForUser(user.ID.String(), user.Username.String(), s.tokenTTL))
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Update patches the user and announces the change. A password change
// re-hashes.
func (s *Service) Update(ctx context.Context, id domain.UserID, cmd UpdateUserCommand) (domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if cmd.Username != nil {
		user.Username = *cmd.Username
	}
	if cmd.Email != nil {
		user.Email = *cmd.Email
	}
	if cmd.Password != nil {
		if err := validatePassword(*cmd.Password); err != nil {
			return domain.User{}, err
		}
		hash, err := s.hasher.Hash(*cmd.Password)
		if err != nil {
			return domain.User{}, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}

	s.announce(ctx, domain.NewUserUpdatedEvent(user))
	return user, nil
}

// Delete removes the account and announces it.
func (s *Service) Delete(ctx context.Context, id domain.UserID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, domain.NewUserDeletedEvent(id))
	return nil
}

// Get returns the user or domain.ErrUserNotFound.
func (s *Service) Get(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.users.Get(ctx, id)
}

// GetByUsername returns the user or domain.ErrUserNotFound.
func (s *Service) GetByUsername(ctx context.Context, username domain.Username) (domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// GetMany returns the users found for ids; missing ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	return s.users.GetMany(ctx, ids)
}

func (s *Service) announce(ctx context.Context, event domain.UserEvent) {
	if err := s.publisher.PublishUserEvent(ctx, event); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error().
			Err(err).
			Str("event_type", event.EventType()).
			Str("user_id", event.SubjectID().String()).
			Msg("Failed to publish user event")
		return
	}
	s.metrics.EventPublished(event.EventType())
}
