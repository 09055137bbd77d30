package httpapi

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserFromContext returns the authenticated caller set by the auth
// middleware.
func UserFromContext(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(domain.UserID)
	return id, ok
}

type errorWriter func(w http.ResponseWriter, status int, message string)

// requireAuth validates the Authorization header and stashes the caller
// id in the request context. unauthorized renders in the host service's
// envelope.
func requireAuth(tokens *auth.TokenHandler, unauthorized errorWriter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			unauthorized(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := tokens.Decode(token)
		if err != nil {
			unauthorized(w, http.StatusUnauthorized, "invalid token")
			return
		}
		userID, err := domain.ParseUserID(claims.Subject)
		if err != nil {
			unauthorized(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the WebSocket upgrade working through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

// instrument wraps a mux with request logging and latency metrics.
func instrument(next http.Handler, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		route := r.Method + " " + r.URL.Path
		m.ObserveHTTPRequest(route, strconv.Itoa(recorder.status), elapsed.Seconds())
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("elapsed", elapsed).
			Msg("Request served")
	})
}
