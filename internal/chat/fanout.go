package chat

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/eventbus"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/registry"
	"github.com/driftchat/drift/internal/ws"
)

// FanoutDispatcher turns consumed chat events into local broadcasts.
// Every instance consumes every shard; the registry lookup is the filter
// that narrows an event down to this instance's sessions.
type FanoutDispatcher struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewFanoutDispatcher wires the dispatcher.
func NewFanoutDispatcher(reg *registry.Registry, m *metrics.Metrics, logger zerolog.Logger) *FanoutDispatcher {
	return &FanoutDispatcher{registry: reg, metrics: m, logger: logger}
}

// HandleRecord is the bus consumer callback. Undecodable records are
// logged and skipped; they must never stop the loop.
func (d *FanoutDispatcher) HandleRecord(_ context.Context, record *kgo.Record) {
	event, err := eventbus.DecodeChatEvent(record.Value)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("topic", record.Topic).
			Msg("Skipping undecodable chat event")
		return
	}
	d.metrics.EventConsumed(event.EventType())

	switch ev := event.(type) {
	case domain.MessageSentEvent:
		d.dispatchMessage(ev)
	default:
		// ChannelCreated and membership events carry no live frame yet.
		d.logger.Debug().
			Str("event_type", event.EventType()).
			Str("topic", record.Topic).
			Msg("Consumed chat event")
	}
}

func (d *FanoutDispatcher) dispatchMessage(ev domain.MessageSentEvent) {
	if d.registry.ConnectionsInChannel(ev.ChannelID) == 0 {
		return
	}

	frame, err := ws.NewMessageFrame(ev)
	if err != nil {
		d.logger.Error().Err(err).Str("message_id", ev.MessageID.String()).Msg("Failed to render message frame")
		return
	}

	delivered, dropped := d.registry.Broadcast(ev.ChannelID, frame)
	d.metrics.FramesSent(delivered)
	if dropped > 0 {
		d.metrics.FramesDropped(dropped)
	}
	d.logger.Debug().
		Str("message_id", ev.MessageID.String()).
		Str("channel_id", ev.ChannelID.String()).
		Int("delivered", delivered).
		Int("dropped", dropped).
		Msg("Broadcast message")
}
