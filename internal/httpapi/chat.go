package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/chat"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/registry"
	"github.com/driftchat/drift/internal/ws"
)

type chatAPI struct {
	channels *chat.ChannelService
	messages *chat.MessageService
	lookup   *chat.UserLookup
	logger   zerolog.Logger
}

// NewChatRouter assembles the chat service HTTP surface, including the
// WebSocket endpoint. The upgrade route authenticates via query token
// inside the handler, so it skips the bearer middleware.
func NewChatRouter(
	channels *chat.ChannelService,
	messages *chat.MessageService,
	lookup *chat.UserLookup,
	sessions *ws.Handler,
	reg *registry.Registry,
	tokens *auth.TokenHandler,
	m *metrics.Metrics,
	logger zerolog.Logger,
) http.Handler {
	api := &chatAPI{channels: channels, messages: messages, lookup: lookup, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/channels/{id}", sessions.HandleChannel)
	mux.HandleFunc("POST /api/channels", requireAuth(tokens, chatError, api.handleCreateChannel))
	mux.HandleFunc("GET /api/channels/public", requireAuth(tokens, chatError, api.handleListPublic))
	mux.HandleFunc("GET /api/channels/mine", requireAuth(tokens, chatError, api.handleListMine))
	mux.HandleFunc("GET /api/channels/{id}", requireAuth(tokens, chatError, api.handleGetChannel))
	mux.HandleFunc("POST /api/channels/{id}/members", requireAuth(tokens, chatError, api.handleJoin))
	mux.HandleFunc("DELETE /api/channels/{id}/members", requireAuth(tokens, chatError, api.handleLeave))
	mux.HandleFunc("GET /api/channels/{id}/messages", requireAuth(tokens, chatError, api.handleHistory))
	mux.HandleFunc("GET /health", Health("chat", func() (string, any) {
		return "connections", reg.Len()
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	return instrument(mux, m, logger)
}

type channelBody struct {
	ID           string    `json:"id"`
	Type         string    `json:"channel_type"`
	Name         *string   `json:"name,omitempty"`
	Description  *string   `json:"description,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Members      []string  `json:"members,omitempty"`
	Participants []string  `json:"participants,omitempty"`
}

func renderChannel(c domain.Channel) channelBody {
	body := channelBody{
		ID:        c.ID().String(),
		Type:      string(c.Type()),
		CreatedBy: c.CreatedBy().String(),
		CreatedAt: c.CreatedAt(),
	}
	if name, ok := c.Name(); ok {
		v := name.String()
		body.Name = &v
	}
	if description, ok := c.Description(); ok {
		body.Description = &description
	}
	switch ch := c.(type) {
	case *domain.PrivateChannel:
		for _, m := range ch.Members() {
			body.Members = append(body.Members, m.String())
		}
	case *domain.DirectChannel:
		for _, p := range ch.Participants() {
			body.Participants = append(body.Participants, p.String())
		}
	}
	return body
}

func renderChannels(channels []domain.Channel) []channelBody {
	out := make([]channelBody, 0, len(channels))
	for _, c := range channels {
		out = append(out, renderChannel(c))
	}
	return out
}

type createChannelRequest struct {
	Type        string   `json:"channel_type"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Members     []string `json:"members"`
	Participant string   `json:"participant"`
}

func (a *chatAPI) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())

	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		chatError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	command, err := req.toCommand()
	if err != nil {
		chatServiceError(w, err)
		return
	}

	channel, err := a.channels.Create(r.Context(), command, caller)
	if err != nil {
		chatServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderChannel(channel))
}

func (r createChannelRequest) toCommand() (domain.CreateChannelCommand, error) {
	switch domain.ChannelType(r.Type) {
	case domain.ChannelTypePublic:
		name, err := domain.NewChannelName(r.Name)
		if err != nil {
			return nil, err
		}
		return domain.CreatePublicChannel{Name: name, Description: r.Description}, nil
	case domain.ChannelTypePrivate:
		name, err := domain.NewChannelName(r.Name)
		if err != nil {
			return nil, err
		}
		members := make([]domain.UserID, 0, len(r.Members))
		for _, raw := range r.Members {
			id, err := domain.ParseUserID(raw)
			if err != nil {
				return nil, &domain.ValidationError{Field: "members", Reason: "contains an invalid user id"}
			}
			members = append(members, id)
		}
		return domain.CreatePrivateChannel{Name: name, Description: r.Description, Members: members}, nil
	case domain.ChannelTypeDirect:
		participant, err := domain.ParseUserID(r.Participant)
		if err != nil {
			return nil, &domain.ValidationError{Field: "participant", Reason: "must be a valid user id"}
		}
		return domain.CreateDirectChannel{Participant: participant}, nil
	default:
		return nil, &domain.ValidationError{Field: "channel_type", Reason: "must be public, private or direct"}
	}
}

func (a *chatAPI) handleListPublic(w http.ResponseWriter, r *http.Request) {
	channels, err := a.channels.ListPublic(r.Context())
	if err != nil {
		chatServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderChannels(channels))
}

func (a *chatAPI) handleListMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	channels, err := a.channels.ListForUser(r.Context(), caller)
	if err != nil {
		chatServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderChannels(channels))
}

func (a *chatAPI) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChannelID(r.PathValue("id"))
	if err != nil {
		chatError(w, http.StatusUnprocessableEntity, "invalid channel id")
		return
	}
	channel, err := a.channels.Get(r.Context(), id)
	if err != nil {
		chatServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderChannel(channel))
}

func (a *chatAPI) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChannelID(r.PathValue("id"))
	if err != nil {
		chatError(w, http.StatusUnprocessableEntity, "invalid channel id")
		return
	}
	caller, _ := UserFromContext(r.Context())
	if err := a.channels.Join(r.Context(), id, caller); err != nil {
		chatServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *chatAPI) handleLeave(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChannelID(r.PathValue("id"))
	if err != nil {
		chatError(w, http.StatusUnprocessableEntity, "invalid channel id")
		return
	}
	caller, _ := UserFromContext(r.Context())
	if err := a.channels.Leave(r.Context(), id, caller); err != nil {
		chatServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageBody struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (a *chatAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChannelID(r.PathValue("id"))
	if err != nil {
		chatError(w, http.StatusUnprocessableEntity, "invalid channel id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			chatError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
			return
		}
	}
	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			chatError(w, http.StatusUnprocessableEntity, "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}

	messages, err := a.messages.History(r.Context(), id, limit, before)
	if err != nil {
		chatServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.renderMessages(r, messages))
}

// renderMessages resolves author usernames through the replica lookup.
// An unresolvable author leaves the username blank rather than failing
// the whole fetch.
func (a *chatAPI) renderMessages(r *http.Request, messages []domain.Message) []messageBody {
	usernames := map[domain.UserID]string{}
	out := make([]messageBody, 0, len(messages))
	for _, m := range messages {
		name, seen := usernames[m.UserID]
		if !seen {
			if replica, err := a.lookup.Lookup(r.Context(), m.UserID); err == nil {
				name = replica.Username.String()
			} else {
				a.logger.Debug().
					Str("user_id", m.UserID.String()).
					Err(err).
					Msg("Failed to resolve message author")
			}
			usernames[m.UserID] = name
		}
		out = append(out, messageBody{
			ID:        m.ID.String(),
			ChannelID: m.ChannelID.String(),
			UserID:    m.UserID.String(),
			Username:  name,
			Content:   m.Content.String(),
			Timestamp: m.Timestamp,
		})
	}
	return out
}
