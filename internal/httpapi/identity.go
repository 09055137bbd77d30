package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/identity"
	"github.com/driftchat/drift/internal/metrics"
)

type identityAPI struct {
	service *identity.Service
	logger  zerolog.Logger
}

// NewIdentityRouter assembles the identity service HTTP surface.
func NewIdentityRouter(service *identity.Service, tokens *auth.TokenHandler, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	api := &identityAPI{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", api.handleLogin)
	mux.HandleFunc("POST /api/users", api.handleCreateUser)
	mux.HandleFunc("GET /api/users/{id}", requireAuth(tokens, identityError, api.handleGetUser))
	mux.HandleFunc("PATCH /api/users/{id}", requireAuth(tokens, identityError, api.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}", requireAuth(tokens, identityError, api.handleDeleteUser))
	mux.HandleFunc("GET /health", Health("identity"))
	mux.Handle("GET /metrics", metrics.Handler())

	return instrument(mux, m, logger)
}

type userBody struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email_address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func renderUser(u domain.User) userBody {
	return userBody{
		ID:        u.ID.String(),
		Username:  u.Username.String(),
		Email:     u.Email.String(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  userBody `json:"user"`
	Token string   `json:"token"`
}

func (a *identityAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		identityError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	username, err := domain.NewUsername(req.Username)
	if err != nil {
		// Invalid usernames cannot match an account; keep the response
		// indistinguishable from a wrong password.
		identityError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		return
	}

	user, token, err := a.service.Authenticate(r.Context(), username, req.Password)
	if err != nil {
		identityServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: renderUser(user), Token: token})
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email_address"`
	Password string `json:"password"`
}

func (a *identityAPI) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		identityError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}
	username, err := domain.NewUsername(req.Username)
	if err != nil {
		identityServiceError(w, err)
		return
	}
	email, err := domain.NewEmailAddress(req.Email)
	if err != nil {
		identityServiceError(w, err)
		return
	}

	user, err := a.service.Create(r.Context(), identity.CreateUserCommand{
		Username: username,
		Email:    email,
		Password: req.Password,
	})
	if err != nil {
		identityServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderUser(user))
}

func (a *identityAPI) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseUserID(r.PathValue("id"))
	if err != nil {
		identityError(w, http.StatusUnprocessableEntity, "invalid user id")
		return
	}
	user, err := a.service.Get(r.Context(), id)
	if err != nil {
		identityServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUser(user))
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email_address"`
	Password *string `json:"password"`
}

func (a *identityAPI) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseUserID(r.PathValue("id"))
	if err != nil {
		identityError(w, http.StatusUnprocessableEntity, "invalid user id")
		return
	}
	caller, _ := UserFromContext(r.Context())
	if caller != id {
		identityError(w, http.StatusForbidden, "cannot modify another user")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		identityError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	var cmd identity.UpdateUserCommand
	if req.Username != nil {
		username, err := domain.NewUsername(*req.Username)
		if err != nil {
			identityServiceError(w, err)
			return
		}
		cmd.Username = &username
	}
	if req.Email != nil {
		email, err := domain.NewEmailAddress(*req.Email)
		if err != nil {
			identityServiceError(w, err)
			return
		}
		cmd.Email = &email
	}
	cmd.Password = req.Password

	user, err := a.service.Update(r.Context(), id, cmd)
	if err != nil {
		identityServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUser(user))
}

func (a *identityAPI) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseUserID(r.PathValue("id"))
	if err != nil {
		identityError(w, http.StatusUnprocessableEntity, "invalid user id")
		return
	}
	caller, _ := UserFromContext(r.Context())
	if caller != id {
		identityError(w, http.StatusForbidden, "cannot delete another user")
		return
	}

	if err := a.service.Delete(r.Context(), id); err != nil {
		identityServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
