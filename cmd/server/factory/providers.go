package factory

import (
	"log/slog"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/queue"
	"github.com/PhotobookScraper/internal/infra/repository"
	"github.com/PhotobookScraper/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewRecordSinks collects the configured scrape record sinks. Having none is valid.
func NewRecordSinks(cfg *config.Config, client *mongo.Client, producer *queue.KafkaProducer) ([]domain.RecordSink, error) {
	var sinks []domain.RecordSink

	if client != nil {
		repo, err := repository.NewMongoRepository(client, cfg.MongoDBName, cfg.MongoColl)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, repo)
	}
	if producer != nil {
		sinks = append(sinks, producer)
	}

	for _, sink := range sinks {
		slog.Info("Registered record sink", "sink", sink.Name())
	}
	return sinks, nil
}
