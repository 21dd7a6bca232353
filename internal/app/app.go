// Package app wires configuration into the store and receipt sink shared by
// the server and the command line tools.
package app

import (
	"context"
	"fmt"

	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/logger"
	"orderdesk/internal/notify"
	"orderdesk/internal/repository"
	"orderdesk/internal/repository/memory"
	"orderdesk/internal/repository/mongo"
	"orderdesk/internal/repository/postgres"
	"orderdesk/internal/service"
)

// OpenStore connects the backend named by cfg.StoreDriver. Postgres
// migrations are applied before the store is returned.
func OpenStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	const op = "app.OpenStore"

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return postgres.New(pool), nil
	case config.DriverMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return store, nil
	case config.DriverMemory:
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%s: unknown store driver %q", op, cfg.StoreDriver)
	}
}

// ReceiptSink is a service.ReceiptSink that owns resources.
type ReceiptSink interface {
	service.ReceiptSink
	Close() error
}

// NewReceiptSink publishes to Kafka when brokers are configured and falls
// back to the log otherwise.
func NewReceiptSink(cfg config.Config) ReceiptSink {
	if len(cfg.KafkaBrokers) == 0 {
		return notify.LogReceiptSink{}
	}
	writer := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaReceiptTopic)
	return notify.NewKafkaReceiptSink(writer, cfg.KafkaReceiptTopic)
}

func ServiceOptions(cfg config.Config) service.Options {
	return service.Options{
		MaxAttempts:         cfg.OrderMaxAttempts,
		TxTimeout:           cfg.TxTimeout,
		MaterialCategoryIDs: cfg.MaterialCategoryIDs,
	}
}
