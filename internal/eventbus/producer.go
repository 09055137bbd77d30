package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/driftchat/drift/internal/domain"
)

// ErrPublishFailed wraps broker-side produce failures.
var ErrPublishFailed = errors.New("event publish failed")

const produceTimeout = 5 * time.Second

// Producer is the shared synchronous produce path. Both services publish
// acknowledged writes; the caller decides whether a failure is fatal (it
// is not on the message send path, where the store is the commit point).
type Producer struct {
	client *kgo.Client
	logger zerolog.Logger
}

// NewProducer connects a producing client to the brokers.
func NewProducer(brokers []string, logger zerolog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// Close flushes and releases the client.
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), produceTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Producer flush failed on close")
	}
	p.client.Close()
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()

	record := &kgo.Record{
		Key:   []byte(key),
		Value: payload,
		Topic: topic,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("%w: topic %s: %v", ErrPublishFailed, topic, err)
	}
	return nil
}

// ChatEventProducer publishes chat events onto the channel-sharded topics.
// The record key is the event id, so ordering within a channel comes from
// the shard assignment, not the key.
type ChatEventProducer struct {
	producer *Producer
	router   *ShardRouter
}

// NewChatEventProducer binds a producer to the shard layout.
func NewChatEventProducer(producer *Producer, router *ShardRouter) *ChatEventProducer {
	return &ChatEventProducer{producer: producer, router: router}
}

// PublishChatEvent serializes the event and produces it to the shard
// owning channel.
func (p *ChatEventProducer) PublishChatEvent(ctx context.Context, channel domain.ChannelID, event domain.ChatEvent) error {
	payload, err := EncodeChatEvent(event)
	if err != nil {
		return err
	}
	topic := p.router.ShardFor(channel)
	if err := p.producer.publish(ctx, topic, event.EventID(), payload); err != nil {
		return err
	}
	p.producer.logger.Debug().
		Str("event_type", event.EventType()).
		Str("channel_id", channel.String()).
		Str("topic", topic).
		Msg("Published chat event")
	return nil
}

// UserEventProducer publishes identity events onto a single topic keyed by
// user id, so all events for one user stay ordered on one partition.
type UserEventProducer struct {
	producer *Producer
	topic    string
}

// NewUserEventProducer binds a producer to the user events topic.
func NewUserEventProducer(producer *Producer, topic string) *UserEventProducer {
	return &UserEventProducer{producer: producer, topic: topic}
}

// PublishUserEvent serializes the event and produces it keyed by subject.
func (p *UserEventProducer) PublishUserEvent(ctx context.Context, event domain.UserEvent) error {
	payload, err := EncodeUserEvent(event)
	if err != nil {
		return err
	}
	if err := p.producer.publish(ctx, p.topic, event.SubjectID().String(), payload); err != nil {
		return err
	}
	p.producer.logger.Debug().
		Str("event_type", event.EventType()).
		Str("user_id", event.SubjectID().String()).
		Msg("Published user event")
	return nil
}
