// Package registry tracks live WebSocket sessions on this instance and
// routes fanned-out events to the sessions watching a given channel.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift/internal/domain"
)

// ConnectionID identifies one WebSocket session on this instance.
type ConnectionID uuid.UUID

// NewConnectionID mints a session id.
func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

func (id ConnectionID) String() string { return uuid.UUID(id).String() }

// Connection is a registered session: who it is, what channel it watches,
// and the outbound queue its writer goroutine drains.
type Connection struct {
	ID        ConnectionID
	UserID    domain.UserID
	ChannelID domain.ChannelID
	Queue     chan []byte
}

// Registry is the per-instance connection table with a channel index for
// broadcast. Every instance consumes every shard, so the index is what
// narrows a fanned-out event down to the local sessions that want it.
// All methods are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	connections  map[ConnectionID]*Connection
	channelIndex map[domain.ChannelID]map[ConnectionID]struct{}
	logger       zerolog.Logger
}

// New returns an empty registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		connections:  make(map[ConnectionID]*Connection),
		channelIndex: make(map[domain.ChannelID]map[ConnectionID]struct{}),
		logger:       logger,
	}
}

// Add registers a connection. Re-adding the same id overwrites the entry,
// which keeps the call idempotent for a retried registration.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID] = conn
	idx, ok := r.channelIndex[conn.ChannelID]
	if !ok {
		idx = make(map[ConnectionID]struct{})
		r.channelIndex[conn.ChannelID] = idx
	}
	idx[conn.ID] = struct{}{}
}

// Remove unregisters a connection. Unknown ids are a no-op. The channel
// index entry is dropped once its last connection leaves, so the index
// never accumulates empty sets for dead channels.
func (r *Registry) Remove(id ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return
	}
	delete(r.connections, id)
	if idx, ok := r.channelIndex[conn.ChannelID]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(r.channelIndex, conn.ChannelID)
		}
	}
}

// Get returns the connection for id.
func (r *Registry) Get(id ConnectionID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// ConnectionsInChannel reports how many local sessions watch channel.
func (r *Registry) ConnectionsInChannel(channel domain.ChannelID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channelIndex[channel])
}

// Broadcast enqueues payload to every session watching channel. The send
// is non-blocking: a session whose queue is full has a writer that cannot
// keep up, and stalling the fan-out loop on it would delay every other
// session on this instance. Returns how many sessions got the payload and
// how many dropped it.
func (r *Registry) Broadcast(channel domain.ChannelID, payload []byte) (delivered, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id := range r.channelIndex[channel] {
		conn, ok := r.connections[id]
		if !ok {
			continue
		}
		select {
		case conn.Queue <- payload:
			delivered++
		default:
			dropped++
			r.logger.Warn().
				Str("connection_id", id.String()).
				Str("channel_id", channel.String()).
				Msg("Dropping frame for slow client")
		}
	}
	return delivered, dropped
}
