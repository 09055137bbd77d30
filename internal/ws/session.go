package ws

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/registry"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays connected.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// outboundQueueSize is the per-session buffer between the fan-out
	// consumer and the writer. A full queue marks the client as slow and
	// the frame is dropped rather than stalling the broadcast.
	outboundQueueSize = 256

	// Inbound rate limit: sustained and burst frames per session.
	inboundRate  = 10
	inboundBurst = 100
)

// session is one upgraded connection and the state its two goroutines
// share.
type session struct {
	id        registry.ConnectionID
	userID    domain.UserID
	channelID domain.ChannelID

	conn  net.Conn
	queue chan []byte

	limiter     *rate.Limiter
	connectedAt time.Time

	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func newSession(conn net.Conn, user domain.UserID, channel domain.ChannelID) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:          registry.NewConnectionID(),
		userID:      user,
		channelID:   channel,
		conn:        conn,
		queue:       make(chan []byte, outboundQueueSize),
		limiter:     rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// close tears down the transport exactly once. Either pump may call it;
// the other unblocks on the dead connection and exits.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

// enqueue attempts a non-blocking send onto the outbound queue.
func (s *session) enqueue(frame []byte) bool {
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}
