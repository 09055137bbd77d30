// Package eventbus carries domain events over a partitioned, durable log.
// Chat events travel on N sharded topics keyed by channel; user events on a
// single topic keyed by user. Serializable envelopes live here so the wire
// format never leaks into the domain packages.
package eventbus

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	"github.com/driftchat/drift/internal/domain"
)

// Shard router construction failures.
var (
	ErrZeroShards    = errors.New("number of shards must be greater than zero")
	ErrNotPowerOfTwo = errors.New("number of shards must be a power of two")
	ErrEmptyPrefix   = errors.New("topic prefix must not be empty")
)

// ShardRouter maps a channel to one of N topic shards named <prefix>.<i>.
// Per-channel ordering requires every producer in the cluster to select the
// same shard for the same channel, so the hash is fixed to FNV-1a, which is
// stable across processes, architectures and runs.
type ShardRouter struct {
	numShards uint32
	prefix    string
}

// NewShardRouter validates the shard count and prefix. N must be a power
// of two so the mapping reduces to a bit mask with no modulo bias.
func NewShardRouter(numShards uint32, prefix string) (*ShardRouter, error) {
	if numShards == 0 {
		return nil, fmt.Errorf("%w, got %d", ErrZeroShards, numShards)
	}
	if numShards&(numShards-1) != 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNotPowerOfTwo, numShards)
	}
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	return &ShardRouter{numShards: numShards, prefix: prefix}, nil
}

// ShardFor returns the topic name carrying the given channel.
func (r *ShardRouter) ShardFor(channel domain.ChannelID) string {
	return fmt.Sprintf("%s.%d", r.prefix, r.shardIndex(channel))
}

func (r *ShardRouter) shardIndex(channel domain.ChannelID) uint32 {
	h := fnv.New64a()
	id := uuid.UUID(channel)
	h.Write(id[:])
	return uint32(h.Sum64()) & (r.numShards - 1)
}

// AllShards enumerates every shard topic, for consumers that subscribe to
// the full set.
func (r *ShardRouter) AllShards() []string {
	shards := make([]string, r.numShards)
	for i := uint32(0); i < r.numShards; i++ {
		shards[i] = fmt.Sprintf("%s.%d", r.prefix, i)
	}
	return shards
}

// NumShards returns N.
func (r *ShardRouter) NumShards() uint32 { return r.numShards }
