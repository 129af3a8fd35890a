package factory

import (
	"errors"
	"fmt"

	"github.com/PhotobookScraper/internal/app"
	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/fetcher"
	"github.com/PhotobookScraper/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
)

func NewRecordDispatcher(sinks []domain.RecordSink) *app.RecordDispatcher {
	return app.NewRecordDispatcher(sinks)
}

// NewGalleryService creates the extraction service with validation.
func NewGalleryService(
	f *fetcher.HTTPFetcher,
	dispatcher *app.RecordDispatcher,
	cfg *config.Config,
) (*app.GalleryService, error) {
	if f == nil {
		return nil, errors.New("fetcher is nil")
	}
	if cfg.Upstream.BaseURL == "" {
		return nil, errors.New("upstream base URL not configured")
	}
	if cfg.DetailRetryBudget < 0 || cfg.DetailRetryBudget > 100 {
		return nil, fmt.Errorf("invalid detail retry budget: %d (must be 0-100)", cfg.DetailRetryBudget)
	}
	if cfg.DetailMaxPages < 0 {
		return nil, fmt.Errorf("invalid detail max pages: %d (must be >= 0)", cfg.DetailMaxPages)
	}

	return app.NewGalleryService(f, dispatcher, app.Options{
		BaseURL:      cfg.Upstream.BaseURL,
		RetryBudget:  cfg.DetailRetryBudget,
		RetryBackoff: cfg.DetailRetryBackoff,
		MaxPages:     cfg.DetailMaxPages,
	}), nil
}

func NewReadinessChecker(client *mongo.Client, cfg *config.Config) *app.ReadinessChecker {
	return app.NewReadinessChecker(client, cfg.KafkaBrokers, cfg.KafkaTopic)
}
