package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// StartOffset selects where a fresh consumer group begins.
type StartOffset int

const (
	// StartLatest skips history. The fan-out consumer uses it: missed live
	// traffic is recoverable through the history API, and replaying old
	// messages to connected clients would duplicate them.
	StartLatest StartOffset = iota
	// StartEarliest replays the full topic. The replica projector uses it
	// so a new chat instance can rebuild its user replica from scratch.
	StartEarliest
)

// RecordHandler processes one record. Handlers own their error handling;
// a record that cannot be processed is logged and skipped, never retried,
// so one poison message cannot wedge the group.
type RecordHandler func(ctx context.Context, record *kgo.Record)

// ConsumerConfig holds group consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Group   string
	Topics  []string
	Offset  StartOffset
	Logger  zerolog.Logger
	Handler RecordHandler
}

// Consumer is a consumer-group poll loop. On fetch errors it logs and
// backs off 100ms before polling again rather than tearing down, so a
// broker restart degrades to a stall instead of an outage.
type Consumer struct {
	client  *kgo.Client
	logger  zerolog.Logger
	handler RecordHandler
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
}

const fetchErrorBackoff = 100 * time.Millisecond

// NewConsumer validates the config and connects the group client.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Group == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("record handler is required")
	}

	reset := kgo.NewOffset().AtEnd()
	if cfg.Offset == StartEarliest {
		reset = kgo.NewOffset().AtStart()
	}

	logger := cfg.Logger
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxBytes(10*1024*1024),
		kgo.SessionTimeout(30*time.Second),
		kgo.RebalanceTimeout(60*time.Second),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info().Interface("partitions", assigned).Msg("Partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			logger.Info().Interface("partitions", revoked).Msg("Partitions revoked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:  client,
		logger:  logger,
		handler: cfg.Handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the poll loop.
func (c *Consumer) Start() {
	c.logger.Info().Msg("Starting consumer")
	c.wg.Add(1)
	go c.consumeLoop()
}

// Stop cancels the loop, waits for it to drain and closes the client.
func (c *Consumer) Stop() {
	c.logger.Info().Msg("Stopping consumer")
	c.cancel()
	c.wg.Wait()
	c.client.Close()
	c.logger.Info().Msg("Consumer stopped")
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		fetches := c.client.PollFetches(c.ctx)
		if fetches.IsClientClosed() {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Error().
					Err(err.Err).
					Str("topic", err.Topic).
					Int32("partition", err.Partition).
					Msg("Fetch error")
			}
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(fetchErrorBackoff):
			}
		}

		fetches.EachRecord(func(record *kgo.Record) {
			c.handler(c.ctx, record)
		})
	}
}
