package mocks

import (
	"context"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*domain.Page, error) {
	args := m.Called(ctx, url)

	// Handle nil page
	var page *domain.Page
	if args.Get(0) != nil {
		page = args.Get(0).(*domain.Page)
	}

	return page, args.Error(1)
}

type MockRecordSink struct {
	mock.Mock
}

func (m *MockRecordSink) Name() string {
	return "mock"
}

func (m *MockRecordSink) Record(ctx context.Context, rec *domain.ScrapeRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
