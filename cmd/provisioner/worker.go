package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantio/hydrofarm-backend/internal/config"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/tasks"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *tasks.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	provisioner *tasks.Provisioner,
) (*tasks.Consumer, error) {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := tasks.NewConsumer(tasks.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.TaskQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.TaskExchange,
		RoutingKey:    cfg.RabbitMQ.TaskRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       provisioner.HandleTask,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	// Register lifecycle hooks
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting provisioner consumer",
				zap.String("queue", cfg.RabbitMQ.TaskQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("provisioner stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool) *registry.Repository {
	return registry.NewRepository(pool)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*tasks.Connection, error) {
	return tasks.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvideTaskStore creates a new task result store instance
func ProvideTaskStore(pool *pgxpool.Pool) *tasks.Store {
	return tasks.NewStore(pool)
}

// ProvideProvisioner creates a new provisioner instance
func ProvideProvisioner(store *tasks.Store, repo *registry.Repository, logger *zap.Logger) *tasks.Provisioner {
	return tasks.NewProvisioner(store, repo, logger)
}
