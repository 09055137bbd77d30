package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/registry"
)

// MessageSender is the slice of the message service the session needs.
type MessageSender interface {
	Send(ctx context.Context, channel domain.ChannelID, user domain.UserID, content domain.MessageContent) (domain.Message, error)
}

// Handler owns the upgrade endpoint and all live sessions on this
// instance.
type Handler struct {
	tokens   *auth.TokenHandler
	registry *registry.Registry
	sender   MessageSender
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	sessions     sync.Map // *session -> struct{}
	wg           sync.WaitGroup
	shuttingDown atomic.Bool
}

// NewHandler wires the session endpoint.
func NewHandler(tokens *auth.TokenHandler, reg *registry.Registry, sender MessageSender, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		tokens:   tokens,
		registry: reg,
		sender:   sender,
		metrics:  m,
		logger:   logger,
	}
}

// HandleChannel upgrades GET /ws/channels/{id}. The bearer token rides a
// query parameter because browser WebSocket clients cannot set headers.
func (h *Handler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	claims, err := h.tokens.Decode(r.URL.Query().Get("token"))
	if err != nil {
		h.metrics.ConnectionFailed()
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID, err := domain.ParseUserID(claims.Subject)
	if err != nil {
		h.metrics.ConnectionFailed()
		http.Error(w, "invalid token subject", http.StatusUnauthorized)
		return
	}
	channelID, err := domain.ParseChannelID(r.PathValue("id"))
	if err != nil {
		h.metrics.ConnectionFailed()
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.metrics.ConnectionFailed()
		h.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade connection")
		return
	}

	sess := newSession(conn, userID, channelID)
	h.registry.Add(&registry.Connection{
		ID:        sess.id,
		UserID:    sess.userID,
		ChannelID: sess.channelID,
		Queue:     sess.queue,
	})
	h.sessions.Store(sess, struct{}{})
	h.metrics.ConnectionOpened()

	h.logger.Info().
		Str("connection_id", sess.id.String()).
		Str("user_id", userID.String()).
		Str("channel_id", channelID.String()).
		Msg("Session opened")

	sess.enqueue(ConnectedFrame(channelID))

	h.wg.Add(2)
	go h.writePump(sess)
	go h.readPump(sess)
}

func (h *Handler) teardown(sess *session, reason string) {
	sess.close()
	if _, loaded := h.sessions.LoadAndDelete(sess); !loaded {
		return
	}
	h.registry.Remove(sess.id)
	h.metrics.ConnectionClosed()
	h.logger.Info().
		Str("connection_id", sess.id.String()).
		Str("reason", reason).
		Dur("connection_duration", time.Since(sess.connectedAt)).
		Msg("Session closed")
}

func (h *Handler) readPump(sess *session) {
	defer h.wg.Done()
	defer h.teardown(sess, "read_closed")

	sess.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msg, op, err := wsutil.ReadClientData(sess.conn)
		if err != nil {
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.metrics.FrameReceived()

		switch op {
		case ws.OpText:
			h.handleClientFrame(sess, msg)
		case ws.OpBinary:
			sess.enqueue(ErrorFrame("binary frames are not supported"))
		case ws.OpClose:
			return
		}
	}
}

func (h *Handler) writePump(sess *session) {
	defer h.wg.Done()
	defer sess.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			wsutil.WriteServerMessage(sess.conn, ws.OpClose, nil)
			return
		case frame := <-sess.queue:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(sess.conn, ws.OpText, frame); err != nil {
				h.logger.Debug().
					Str("connection_id", sess.id.String()).
					Err(err).
					Msg("Failed to write frame")
				return
			}
			h.metrics.FrameSent()
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(sess.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleClientFrame(sess *session, data []byte) {
	if !sess.limiter.Allow() {
		sess.enqueue(ErrorFrame("too many messages, slow down"))
		return
	}

	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		sess.enqueue(ErrorFrame("malformed frame"))
		return
	}

	switch frame.Type {
	case ClientFramePing:
		sess.enqueue(PongFrame())
	case ClientFrameSendMessage:
		h.handleSendMessage(sess, frame.Content)
	default:
		sess.enqueue(ErrorFrame("unknown frame type"))
	}
}

func (h *Handler) handleSendMessage(sess *session, raw string) {
	content, err := domain.NewMessageContent(raw)
	if err != nil {
		sess.enqueue(ErrorFrame(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(sess.ctx, 10*time.Second)
	defer cancel()

	if _, err := h.sender.Send(ctx, sess.channelID, sess.userID, content); err != nil {
		h.logger.Error().
			Err(err).
			Str("connection_id", sess.id.String()).
			Str("channel_id", sess.channelID.String()).
			Msg("Send failed")
		sess.enqueue(ErrorFrame(sendErrorMessage(err)))
	}
}

// sendErrorMessage maps internal failures to a client-safe message.
func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrChannelNotFound):
		return "channel not found"
	case domain.IsValidation(err):
		return err.Error()
	default:
		return "failed to send message"
	}
}

// Shutdown refuses new upgrades, closes every live session and waits for
// the pumps to drain, bounded by ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.shuttingDown.Store(true)

	h.sessions.Range(func(key, _ any) bool {
		h.teardown(key.(*session), "server_shutdown")
		return true
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
