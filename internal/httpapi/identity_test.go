package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/identity"
	"github.com/driftchat/drift/internal/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memUserStore struct {
	mu    sync.Mutex
	users map[domain.UserID]domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[domain.UserID]domain.User)}
}

func (s *memUserStore) Insert(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return domain.ErrUsernameAlreadyExists
		}
		if existing.Email == user.Email {
			return domain.ErrEmailAlreadyExists
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) Update(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) Delete(_ context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memUserStore) Get(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *memUserStore) GetByUsername(_ context.Context, username domain.Username) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *memUserStore) GetMany(_ context.Context, ids []domain.UserID) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

type nopUserPublisher struct{}

func (nopUserPublisher) PublishUserEvent(context.Context, domain.UserEvent) error { return nil }

func newIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	tokens := auth.NewTokenHandler([]byte(testSecret))
	service := identity.NewService(
		newMemUserStore(),
		auth.NewPasswordHasher(),
		tokens,
		time.Hour,
		nopUserPublisher{},
		metrics.New(prometheus.NewRegistry()),
		zerolog.Nop(),
	)
	server := httptest.NewServer(NewIdentityRouter(service, tokens, metrics.New(prometheus.NewRegistry()), zerolog.Nop()))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any, token string) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodPost, url, body, token)
}

func doJSON(t *testing.T, method, url string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerUser(t *testing.T, server *httptest.Server, username string) userBody {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/users", map[string]string{
		"username":      username,
		"email_address": username + "@example.com",
		"password":      "correct horse battery",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[userBody](t, resp)
}

func loginUser(t *testing.T, server *httptest.Server, username string) loginResponse {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/auth/login", map[string]string{
		"username": username,
		"password": "correct horse battery",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[loginResponse](t, resp)
}

func TestIdentityCreateUser(t *testing.T) {
	server := newIdentityServer(t)

	user := registerUser(t, server, "alice")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestIdentityCreateUserDuplicateUsername(t *testing.T) {
	server := newIdentityServer(t)
	registerUser(t, server, "alice")

	resp := postJSON(t, server.URL+"/api/users", map[string]string{
		"username":      "alice",
		"email_address": "other@example.com",
		"password":      "correct horse battery",
	}, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[identityErrorBody](t, resp)
	assert.Equal(t, http.StatusConflict, body.StatusCode)
	assert.Equal(t, domain.ErrUsernameAlreadyExists.Error(), body.Data.Message)
}

func TestIdentityCreateUserWeakPassword(t *testing.T) {
	server := newIdentityServer(t)

	resp := postJSON(t, server.URL+"/api/users", map[string]string{
		"username":      "alice",
		"email_address": "alice@example.com",
		"password":      "short",
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIdentityLoginAndGetUser(t *testing.T) {
	server := newIdentityServer(t)
	created := registerUser(t, server, "alice")

	login := loginUser(t, server, "alice")
	assert.Equal(t, created.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/users/"+created.ID, nil, login.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeBody[userBody](t, resp)
	assert.Equal(t, "alice", fetched.Username)
}

func TestIdentityLoginWrongPassword(t *testing.T) {
	server := newIdentityServer(t)
	registerUser(t, server, "alice")

	resp := postJSON(t, server.URL+"/api/auth/login", map[string]string{
		"username": "alice",
		"password": "not the password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody[identityErrorBody](t, resp)
	assert.Equal(t, domain.ErrInvalidCredentials.Error(), body.Data.Message)
}

func TestIdentityGetUserRequiresToken(t *testing.T) {
	server := newIdentityServer(t)
	created := registerUser(t, server, "alice")

	resp := doJSON(t, http.MethodGet, server.URL+"/api/users/"+created.ID, nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody[identityErrorBody](t, resp)
	assert.Equal(t, http.StatusUnauthorized, body.StatusCode)
}

func TestIdentityUpdateUser(t *testing.T) {
	server := newIdentityServer(t)
	created := registerUser(t, server, "alice")
	login := loginUser(t, server, "alice")

	resp := doJSON(t, http.MethodPatch, server.URL+"/api/users/"+created.ID, map[string]string{
		"username": "alice2",
	}, login.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeBody[userBody](t, resp)
	assert.Equal(t, "alice2", updated.Username)
}

func TestIdentityUpdateOtherUserForbidden(t *testing.T) {
	server := newIdentityServer(t)
	registerUser(t, server, "alice")
	other := registerUser(t, server, "bob")
	login := loginUser(t, server, "alice")

	resp := doJSON(t, http.MethodPatch, server.URL+"/api/users/"+other.ID, map[string]string{
		"username": "hijacked",
	}, login.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIdentityDeleteUser(t *testing.T) {
	server := newIdentityServer(t)
	created := registerUser(t, server, "alice")
	login := loginUser(t, server, "alice")

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/users/"+created.ID, nil, login.Token)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/users/"+created.ID, nil, login.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
