package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// EnsureTopics creates any of the given topics that do not exist yet.
// Both services run it on boot so a fresh cluster needs no manual topic
// provisioning; an already-existing topic is not an error.
func EnsureTopics(ctx context.Context, brokers []string, partitions int32, replication int16, logger zerolog.Logger, topics ...string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("failed to create kafka client: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	responses, err := admin.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range responses.Sorted() {
		if resp.Err == nil {
			logger.Info().
				Str("topic", resp.Topic).
				Int32("partitions", partitions).
				Msg("Created topic")
			continue
		}
		if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			continue
		}
		return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
	}
	return nil
}
