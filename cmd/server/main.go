package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prudhvinik1/devicerelay/internal/config"
	"github.com/prudhvinik1/devicerelay/internal/database"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/prudhvinik1/devicerelay/internal/repositories"
	"github.com/prudhvinik1/devicerelay/internal/services"
	"github.com/prudhvinik1/devicerelay/internal/transport/ws"
	"github.com/prudhvinik1/devicerelay/internal/utils"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promRegistry)

	// Notification system of record
	var notificationRepo repositories.NotificationRepository = repositories.DisabledNotificationRepository{}
	switch cfg.PersistenceMode() {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create postgres pool.")
		}
		defer pool.Close()
		notificationRepo = repositories.NewPostgresNotificationRepository(pool)
	case "api":
		notificationRepo = newAPIRepository(cfg, logger)
	default:
		logger.Warn().Msg("No notification persistence configured; notifications are delivered without ids.")
	}

	// Optional presence mirror
	var presenceRepo repositories.PresenceRepository
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create redis client.")
		}
		defer redisClient.Close()
		presenceRepo = repositories.NewRedisPresenceRepository(redisClient, cfg.PresenceTTL)
	}

	reg := registry.New(logger)
	presence := services.NewPresenceService(reg, presenceRepo, metrics, logger)
	notifications := services.NewNotificationService(reg, notificationRepo, cfg.PersistTimeout, metrics, logger)
	messages := services.NewMessageService(reg, notifications, metrics, logger)
	dispatcher := services.NewDispatcher(reg, presence, notifications, messages, metrics, logger)

	relay := ws.NewHandler(dispatcher, ws.Options{
		SendBuffer:     cfg.SendBufferSize,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	// Start Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           newRouter(relay, dispatcher, promRegistry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown failed.")
		}
		if err := relay.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Websocket sessions did not close in time.")
		}
	}()

	logger.Info().Str("port", cfg.ServerPort).Str("persistence", cfg.PersistenceMode()).
		Bool("presence_mirror", presenceRepo != nil).Msg("Starting server.")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server error.")
	}

	<-stopped
	logger.Info().Msg("Server stopped gracefully.")
}

func newAPIRepository(cfg *config.Config, logger zerolog.Logger) *repositories.APINotificationRepository {
	client := &http.Client{Timeout: cfg.PersistTimeout}
	if cfg.NotificationAPISecret == "" {
		return repositories.NewAPINotificationRepository(cfg.NotificationAPIURL, client, nil)
	}
	signer, err := utils.NewServiceTokenSigner(cfg.NotificationAPISecret, cfg.NotificationAPITokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure persistence API token.")
	}
	return repositories.NewAPINotificationRepository(cfg.NotificationAPIURL, client, signer)
}
