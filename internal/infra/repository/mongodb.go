package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/PhotobookScraper/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores scrape records as an audit trail.
type MongoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName, collectionName string) (*MongoRepository, error) {
	db := client.Database(dbName)
	repo := &MongoRepository{
		db:         db,
		collection: db.Collection(collectionName),
	}

	if err := repo.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "url", Value: 1},
				{Key: "started_at", Value: -1},
			},
			Options: options.Index().SetName("url_started_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
			},
			Options: options.Index().SetName("kind_idx"),
		},
	}

	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)
	_, err := r.collection.Indexes().CreateMany(ctx, models, opts)
	return err
}

func (r *MongoRepository) Name() string {
	return "mongodb"
}

// Record upserts by record ID, so a re-delivered record is stored once.
func (r *MongoRepository) Record(ctx context.Context, rec *domain.ScrapeRecord) error {
	filter := bson.M{"_id": rec.ID}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert scrape record: %w", err)
	}
	return nil
}
