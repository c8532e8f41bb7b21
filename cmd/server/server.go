package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/verdantio/hydrofarm-backend/internal/config"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/httpapi"
	"github.com/verdantio/hydrofarm-backend/internal/mqttbridge"
	"github.com/verdantio/hydrofarm-backend/internal/registration"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
	"github.com/verdantio/hydrofarm-backend/internal/tasks"
	"github.com/verdantio/hydrofarm-backend/internal/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	server *httpapi.Server,
	bridge *mqttbridge.Bridge,
	logger *zap.Logger,
) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: server.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.MQTT.BrokerURL != "" {
				if err := bridge.Start(ctx); err != nil {
					return err
				}
			}
			logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			bridge.Stop()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down HTTP server", zap.Error(err))
				return err
			}
			logger.Info("server stopped gracefully")
			return nil
		},
	})
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool) *registry.Repository {
	return registry.NewRepository(pool)
}

// ProvideRedisClient creates the hot-cache client instance
func ProvideRedisClient(lc fx.Lifecycle, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// ProvideTelemetryStore creates a new telemetry store instance
func ProvideTelemetryStore(repo *registry.Repository, client *redis.Client, logger *zap.Logger) *telemetry.Store {
	return telemetry.NewStore(repo, telemetry.NewRedisCache(client), logger)
}

// ProvideHub creates a new connection hub instance
func ProvideHub() *relay.Hub {
	return relay.NewHub()
}

// ProvideRelayService creates a new relay service instance
func ProvideRelayService(
	repo *registry.Repository,
	store *telemetry.Store,
	hub *relay.Hub,
	logger *zap.Logger,
) *relay.Service {
	return relay.NewService(repo, repo, store, hub, logger)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*tasks.Connection, error) {
	return tasks.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates a new task publisher instance
func ProvidePublisher(conn *tasks.Connection, cfg *config.Config, logger *zap.Logger) (*tasks.Publisher, error) {
	return tasks.NewPublisher(conn, cfg.RabbitMQ.TaskExchange, cfg.RabbitMQ.TaskRoutingKey, logger)
}

// ProvideTaskStore creates a new task result store instance
func ProvideTaskStore(pool *pgxpool.Pool) *tasks.Store {
	return tasks.NewStore(pool)
}

// ProvideRegistrationService creates a new registration service instance
func ProvideRegistrationService(
	repo *registry.Repository,
	publisher *tasks.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *registration.Service {
	return registration.NewService(repo, publisher, registration.Options{
		ServerDomain:       cfg.ServerDomain,
		SubdomainNamespace: cfg.SubdomainNamespace,
		TokenBytes:         cfg.ControllerTokenBytes,
	}, logger)
}

// ProvideBridge creates a new MQTT bridge instance
func ProvideBridge(cfg *config.Config, relayService *relay.Service, logger *zap.Logger) *mqttbridge.Bridge {
	return mqttbridge.New(cfg.MQTT, relayService, logger)
}

// ProvideServer creates a new HTTP server instance
func ProvideServer(
	cfg *config.Config,
	repo *registry.Repository,
	registrationService *registration.Service,
	relayService *relay.Service,
	telemetryStore *telemetry.Store,
	taskStore *tasks.Store,
	hub *relay.Hub,
	logger *zap.Logger,
) *httpapi.Server {
	return httpapi.NewServer(cfg, repo, registrationService, relayService, telemetryStore, taskStore, hub, logger)
}
