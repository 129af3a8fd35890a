package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes scrape records so downstream consumers can follow what the
// proxy served.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // records for the same URL land on the same partition
	}
	slog.Info("Kafka Producer initialized", "brokers", brokers, "topic", topic)
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) Name() string {
	return "kafka"
}

func (p *KafkaProducer) Record(ctx context.Context, rec *domain.ScrapeRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(rec.URL),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	slog.Debug("Published scrape record to Kafka", "id", rec.ID, "kind", rec.Kind)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
