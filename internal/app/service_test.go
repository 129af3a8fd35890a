package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const base = "https://danryoku.com"

var errTimeout = errors.New("dial tcp: i/o timeout")

func galleryPage(next string, srcs ...string) *domain.Page {
	var b strings.Builder
	b.WriteString(`<html><body><div class="dynamic-entry-content">`)
	for _, src := range srcs {
		fmt.Fprintf(&b, `<img src="%s" title="%s">`, src, strings.TrimSuffix(src[strings.LastIndex(src, "/")+1:], ".jpg"))
	}
	b.WriteString(`</div>`)
	if next != "" {
		fmt.Fprintf(&b, `<div class="nav-right"><a href="%s">Next</a></div>`, next)
	}
	b.WriteString(`</body></html>`)
	return &domain.Page{StatusCode: 200, Body: []byte(b.String())}
}

func newTestService(f domain.Fetcher, opts Options) *GalleryService {
	if opts.BaseURL == "" {
		opts.BaseURL = base
	}
	return NewGalleryService(f, NewRecordDispatcher(nil), opts)
}

func imageURLs(images []domain.GalleryImage) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.URL)
	}
	return out
}

func TestGalleryService_DetailFollowsNextLinks(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(galleryPage(base+"/book/3/", "https://cdn/b.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/3/").Return(galleryPage("", "https://cdn/c.jpg"), nil).Once()

	images := newTestService(fetcher, Options{RetryBudget: 3}).DetailPage(context.Background(), base+"/book/")

	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg", "https://cdn/c.jpg"}, imageURLs(images))
	assert.Equal(t, "a", images[0].Title)
	fetcher.AssertExpectations(t)
}

func TestGalleryService_DetailStopsWhenRetryBudgetExhausted(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(nil, errTimeout).Times(4)

	images := newTestService(fetcher, Options{RetryBudget: 3}).DetailPage(context.Background(), base+"/book/")

	assert.Equal(t, []string{"https://cdn/a.jpg"}, imageURLs(images))
	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "Fetch", 5)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, base+"/book/3/")
}

func TestGalleryService_DetailRetryBudgetIsShared(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(nil, errTimeout).Times(2)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(nil, errTimeout).Times(2)

	images := newTestService(fetcher, Options{RetryBudget: 3}).DetailPage(context.Background(), base+"/book/")

	// 2 failures on page 1 + 2 on page 2 exceed the budget of 3 without a reset.
	assert.Equal(t, []string{"https://cdn/a.jpg"}, imageURLs(images))
	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "Fetch", 5)
}

func TestGalleryService_DetailStartFailure(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/gone/").Return(nil, errTimeout).Times(4)

	images := newTestService(fetcher, Options{RetryBudget: 3}).DetailPage(context.Background(), base+"/gone/")

	assert.NotNil(t, images)
	assert.Empty(t, images)
	fetcher.AssertExpectations(t)
}

func TestGalleryService_DetailStopsOnCycle(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(galleryPage(base+"/book/", "https://cdn/b.jpg"), nil).Once()

	images := newTestService(fetcher, Options{RetryBudget: 3}).DetailPage(context.Background(), base+"/book/")

	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, imageURLs(images))
	fetcher.AssertExpectations(t)
}

func TestGalleryService_DetailResolvesRelativeNext(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage("2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(galleryPage("", "https://cdn/b.jpg"), nil).Once()

	images := newTestService(fetcher, Options{}).DetailPage(context.Background(), base+"/book/")

	assert.Len(t, images, 2)
	fetcher.AssertExpectations(t)
}

func TestGalleryService_DetailMaxPages(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(galleryPage(base+"/book/3/", "https://cdn/b.jpg"), nil).Once()

	images := newTestService(fetcher, Options{MaxPages: 2}).DetailPage(context.Background(), base+"/book/")

	assert.Len(t, images, 2)
	fetcher.AssertExpectations(t)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, base+"/book/3/")
}

func TestGalleryService_DetailCancelledContext(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images := newTestService(fetcher, Options{}).DetailPage(ctx, base+"/book/")

	assert.Empty(t, images)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGalleryService_DetailBackoffHonoursCancellation(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(nil, errTimeout).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	images := newTestService(fetcher, Options{RetryBudget: 3, RetryBackoff: time.Hour}).DetailPage(ctx, base+"/book/")

	assert.Empty(t, images)
	assert.Less(t, time.Since(start), 5*time.Second)
	fetcher.AssertExpectations(t)
}

func TestGalleryService_Random(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	page := galleryPage("", "https://cdn/r.jpg")
	page.FinalURL = base + "/book/99/"
	fetcher.On("Fetch", mock.Anything, base+"/random-photobook").Return(page, nil).Once()

	images := newTestService(fetcher, Options{}).Random(context.Background())

	assert.Equal(t, []string{"https://cdn/r.jpg"}, imageURLs(images))
	fetcher.AssertExpectations(t)
}

func TestGalleryService_ListPage(t *testing.T) {
	html := `<article class="dynamic-content-template"><figure><img src="/t.jpg"></figure>
<h2 class="gb-headline"><a href="https://danryoku.com/book/">Book</a></h2></article>
<div class="nav-links"><span class="page-numbers current">1</span><a class="page-numbers" href="/page/2/">2</a></div>`

	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/category/x/").Return(&domain.Page{StatusCode: 200, Body: []byte(html)}, nil).Once()

	items, pagination := newTestService(fetcher, Options{}).ListPage(context.Background(), base+"/category/x/")

	require.Len(t, items, 1)
	assert.Equal(t, domain.ListItem{Title: "Book", URL: "https://danryoku.com/book/", Thumb: "/t.jpg"}, items[0])
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Current)
	require.NotNil(t, pagination.Last)
	assert.Equal(t, 2, *pagination.Last)
}

func TestGalleryService_ListPageFetchFailure(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/category/x/").Return(nil, errTimeout).Once()

	items, pagination := newTestService(fetcher, Options{}).ListPage(context.Background(), base+"/category/x/")

	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Nil(t, pagination)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestGalleryService_SearchURL(t *testing.T) {
	svc := newTestService(new(mocks.MockFetcher), Options{BaseURL: base + "/"})

	tests := []struct {
		query, page, want string
	}{
		{"summer", "1", base + "/page/1/?s=summer"},
		{"春 summer", "2", base + "/page/2/?s=%E6%98%A5%20summer"},
		{"a&b=c/d", "", base + "/page/1/?s=a%26b%3Dc%2Fd"},
		{"", "abc", base + "/page/1/?s="},
		{"x", "-4", base + "/page/1/?s=x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.SearchURL(tt.query, tt.page), tt.query)
	}
}

func TestGalleryService_RecordsScrapes(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, base+"/book/").Return(galleryPage(base+"/book/2/", "https://cdn/a.jpg"), nil).Once()
	fetcher.On("Fetch", mock.Anything, base+"/book/2/").Return(galleryPage("", "https://cdn/b.jpg", "https://cdn/c.jpg"), nil).Once()

	sink := new(mocks.MockRecordSink)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(rec *domain.ScrapeRecord) bool {
		return rec.Kind == domain.KindDetail &&
			rec.URL == base+"/book/" &&
			rec.Items == 3 &&
			rec.Pages == 2 &&
			!rec.Partial &&
			rec.ID != "" &&
			rec.ResultHash == domain.HashURLs([]string{"https://cdn/a.jpg", "https://cdn/b.jpg", "https://cdn/c.jpg"})
	})).Return(nil).Once()

	dispatcher := NewRecordDispatcher([]domain.RecordSink{sink})
	svc := NewGalleryService(fetcher, dispatcher, Options{BaseURL: base, RetryBudget: 3})

	images := svc.DetailPage(context.Background(), base+"/book/")
	require.Len(t, images, 3)

	require.NoError(t, dispatcher.Wait(context.Background()))
	sink.AssertExpectations(t)
}
