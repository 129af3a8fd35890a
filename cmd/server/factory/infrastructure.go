// Package factory provides dependency injection constructors for infrastructure components.
package factory

import (
	"context"
	"log/slog"
	"time"

	"github.com/PhotobookScraper/internal/infra/fetcher"
	"github.com/PhotobookScraper/internal/infra/queue"
	"github.com/PhotobookScraper/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// NewMongoClient creates a MongoDB client with lifecycle management.
// It returns a nil client when MONGO_URI is unset; the audit store is then disabled.
func NewMongoClient(lc fx.Lifecycle, cfg *config.Config) (*mongo.Client, error) {
	if cfg.MongoURI == "" {
		slog.Info("MONGO_URI not set, scrape audit store disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

// NewKafkaProducer creates the producer for scrape events.
// It returns nil when KAFKA_BROKERS is unset.
func NewKafkaProducer(cfg *config.Config, lc fx.Lifecycle) *queue.KafkaProducer {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
		slog.Info("Kafka not configured, scrape events disabled")
		return nil
	}

	producer := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer
}

// NewHTTPFetcher creates the upstream fetcher with its circuit breaker.
func NewHTTPFetcher(cfg *config.Config) (*fetcher.HTTPFetcher, error) {
	if len(cfg.Upstream.Proxies) > 0 {
		slog.Info("Using configured upstream proxies", "path", cfg.ProxyConfigPath, "schemes", len(cfg.Upstream.Proxies))
	}
	return fetcher.NewHTTPFetcher(cfg.Upstream, fetcher.BreakerSettings{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	})
}
