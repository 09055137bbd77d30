package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/drift/internal/domain"
)

// UserStore is the identity-side account adapter.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore wraps the pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Insert adds the user, mapping unique violations to the username/email
// sentinels.
func (s *UserStore) Insert(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID.String(), user.Username.String(), user.Email.String(),
		user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	switch uniqueConstraint(err) {
	case "users_username_key":
		return domain.ErrUsernameAlreadyExists
	case "users_email_key":
		return domain.ErrEmailAlreadyExists
	}
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Update rewrites the mutable columns.
func (s *UserStore) Update(ctx context.Context, user domain.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = $3, password_hash = $4, updated_at = $5
		WHERE id = $1`,
		user.ID.String(), user.Username.String(), user.Email.String(),
		user.PasswordHash, user.UpdatedAt)
	switch uniqueConstraint(err) {
	case "users_username_key":
		return domain.ErrUsernameAlreadyExists
	case "users_email_key":
		return domain.ErrEmailAlreadyExists
	}
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes the user or returns domain.ErrUserNotFound.
func (s *UserStore) Delete(ctx context.Context, id domain.UserID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// Get returns the user or domain.ErrUserNotFound.
func (s *UserStore) Get(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id.String()))
}

// GetByUsername returns the user or domain.ErrUserNotFound.
func (s *UserStore) GetByUsername(ctx context.Context, username domain.Username) (domain.User, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username.String()))
}

// GetMany returns the users found for ids; missing ids are skipped.
func (s *UserStore) GetMany(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (s *UserStore) scanOne(row pgx.Row) (domain.User, error) {
	var (
		id, username, email string
		user                domain.User
	)
	err := row.Scan(&id, &username, &email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, storeErr(err)
	}

	if user.ID, err = domain.ParseUserID(id); err != nil {
		return domain.User{}, storeErr(err)
	}
	if user.Username, err = domain.NewUsername(username); err != nil {
		return domain.User{}, storeErr(err)
	}
	if user.Email, err = domain.NewEmailAddress(email); err != nil {
		return domain.User{}, storeErr(err)
	}
	return user, nil
}
