package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/chat"
	"github.com/driftchat/drift/internal/config"
	"github.com/driftchat/drift/internal/directory"
	"github.com/driftchat/drift/internal/eventbus"
	"github.com/driftchat/drift/internal/httpapi"
	"github.com/driftchat/drift/internal/logging"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/registry"
	"github.com/driftchat/drift/internal/storage/postgres"
	"github.com/driftchat/drift/internal/storage/scylla"
	"github.com/driftchat/drift/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadChat()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New("chat", cfg.Log.Level, cfg.Log.Format)
	m := metrics.New(prometheus.DefaultRegisterer)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	pool, err := postgres.Connect(bootCtx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	defer pool.Close()
	if err := postgres.EnsureChatSchema(bootCtx, pool); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure chat schema")
	}

	session, err := scylla.Connect(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, cfg.Scylla.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to scylla")
	}
	defer session.Close()

	router, err := eventbus.NewShardRouter(cfg.Kafka.MessageShards, cfg.Kafka.MessageTopicPrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid shard layout")
	}
	topics := append(router.AllShards(), cfg.Kafka.UserEventsTopic)
	if err := eventbus.EnsureTopics(bootCtx, cfg.Kafka.Brokers, 1, 1, logger, topics...); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure topics")
	}

	producer, err := eventbus.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create producer")
	}
	defer producer.Close()
	chatPublisher := eventbus.NewChatEventProducer(producer, router)

	channelStore := postgres.NewChannelStore(pool)
	replicaStore := postgres.NewReplicaStore(pool)
	messageStore := scylla.NewMessageStore(session)

	var remote chat.UserDirectory
	if cfg.Directory.Target != "" {
		client, err := directory.Dial(cfg.Directory.Target)
		if err != nil {
			logger.Fatal().Err(err).Str("target", cfg.Directory.Target).Msg("Failed to dial user directory")
		}
		defer client.Close()
		remote = client
	}

	tokens := auth.NewTokenHandler([]byte(cfg.Auth.Secret))
	channels := chat.NewChannelService(channelStore, chatPublisher, m, logger)
	messages := chat.NewMessageService(channelStore, messageStore, chatPublisher, m, logger)
	lookup := chat.NewUserLookup(replicaStore, remote, logger)

	reg := registry.New(logger)
	sessions := ws.NewHandler(tokens, reg, messages, m, logger)

	fanout, err := eventbus.NewConsumer(eventbus.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.FanoutGroup,
		Topics:  router.AllShards(),
		Offset:  eventbus.StartLatest,
		Logger:  logger.With().Str("consumer", "fanout").Logger(),
		Handler: chat.NewFanoutDispatcher(reg, m, logger).HandleRecord,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fan-out consumer")
	}
	projector, err := eventbus.NewConsumer(eventbus.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.ReplicaGroup,
		Topics:  []string{cfg.Kafka.UserEventsTopic},
		Offset:  eventbus.StartEarliest,
		Logger:  logger.With().Str("consumer", "replica").Logger(),
		Handler: chat.NewReplicaProjector(replicaStore, channelStore, m, logger).HandleRecord,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create replica consumer")
	}
	fanout.Start()
	projector.Start()

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewChatRouter(channels, messages, lookup, sessions, reg, tokens, m, logger),
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Chat service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Session shutdown timed out")
	}
	fanout.Stop()
	projector.Stop()
	logger.Info().Msg("Shutdown complete")
}
