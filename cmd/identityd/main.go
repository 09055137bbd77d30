package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"
	"google.golang.org/grpc"

	"github.com/driftchat/drift/internal/auth"
	"github.com/driftchat/drift/internal/config"
	"github.com/driftchat/drift/internal/directory"
	"github.com/driftchat/drift/internal/eventbus"
	"github.com/driftchat/drift/internal/httpapi"
	"github.com/driftchat/drift/internal/identity"
	"github.com/driftchat/drift/internal/logging"
	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadIdentity()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.New("identity", cfg.Log.Level, cfg.Log.Format)
	m := metrics.New(prometheus.DefaultRegisterer)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	pool, err := postgres.Connect(bootCtx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to postgres")
	}
	defer pool.Close()
	if err := postgres.EnsureIdentitySchema(bootCtx, pool); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure identity schema")
	}

	if err := eventbus.EnsureTopics(bootCtx, cfg.Kafka.Brokers, 1, 1, logger, cfg.Kafka.UserEventsTopic); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure topics")
	}
	producer, err := eventbus.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create producer")
	}
	defer producer.Close()

	tokens := auth.NewTokenHandler([]byte(cfg.Auth.Secret))
	service := identity.NewService(
		postgres.NewUserStore(pool),
		auth.NewPasswordHasher(),
		tokens,
		cfg.Auth.TokenTTL,
		eventbus.NewUserEventProducer(producer, cfg.Kafka.UserEventsTopic),
		m,
		logger,
	)

	grpcServer := grpc.NewServer()
	directory.Register(grpcServer, service)
	listener, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPC.Addr).Msg("Failed to listen for gRPC")
	}
	go func() {
		logger.Info().Str("addr", cfg.GRPC.Addr).Msg("User directory listening")
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewIdentityRouter(service, tokens, m, logger),
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Identity service listening")
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
	grpcServer.GracefulStop()
	logger.Info().Msg("Shutdown complete")
}
