package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ReadinessChecker verifies the optional record sinks. An unconfigured sink is skipped,
// so a service without Mongo or Kafka is always ready.
type ReadinessChecker struct {
	mongoClient *mongo.Client
	brokers     []string
	topic       string
	dialTimeout time.Duration
}

func NewReadinessChecker(mongoClient *mongo.Client, brokers []string, topic string) *ReadinessChecker {
	return &ReadinessChecker{
		mongoClient: mongoClient,
		brokers:     brokers,
		topic:       topic,
		dialTimeout: 2 * time.Second,
	}
}

func (c *ReadinessChecker) Check(ctx context.Context) error {
	if c.mongoClient != nil {
		if err := c.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongodb not ready: %w", err)
		}
	}
	if len(c.brokers) > 0 {
		if err := c.checkKafka(ctx); err != nil {
			return fmt.Errorf("kafka not ready: %w", err)
		}
	}
	return nil
}

func (c *ReadinessChecker) checkKafka(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	for _, broker := range c.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}

	conn, err := kafka.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	partitions, err := conn.ReadPartitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions for topic %s: %w", c.topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", c.topic)
	}
	return nil
}
