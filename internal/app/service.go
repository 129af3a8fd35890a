package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/metrics"
	"github.com/PhotobookScraper/internal/infra/parser"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tracerName = "photobook-scraper"
	randomPath = "/random-photobook"
)

// Abort reasons reported when a detail traversal stops before the gallery's last page.
const (
	abortRetryBudget = "retry_budget"
	abortCycle       = "cycle"
	abortMaxPages    = "max_pages"
	abortCancelled   = "cancelled"
	abortParse       = "parse_error"
)

// Options tunes the extraction behaviour of GalleryService.
type Options struct {
	BaseURL string
	// RetryBudget is the number of failed fetches tolerated over a whole detail
	// traversal. The counter is shared by all pages and never reset.
	RetryBudget int
	// RetryBackoff is the pause before re-fetching a failed page. Zero retries at once.
	RetryBackoff time.Duration
	// MaxPages caps the pages visited per detail traversal. Zero means unbounded.
	MaxPages int
}

// GalleryService runs the list and detail extractions behind the JSON API.
// Each call is sequential; the service itself holds no per-request state.
type GalleryService struct {
	fetcher  domain.Fetcher
	recorder *RecordDispatcher
	opts     Options
}

func NewGalleryService(fetcher domain.Fetcher, recorder *RecordDispatcher, opts Options) *GalleryService {
	if opts.RetryBudget < 0 {
		opts.RetryBudget = 0
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &GalleryService{
		fetcher:  fetcher,
		recorder: recorder,
		opts:     opts,
	}
}

// ListPage extracts the listing at pageURL. A failed fetch yields no items and a nil
// pagination; it is not an error.
func (s *GalleryService) ListPage(ctx context.Context, pageURL string) ([]domain.ListItem, *domain.Pagination) {
	return s.list(ctx, domain.KindCategory, pageURL)
}

// Search extracts the upstream search results for query on the given page.
func (s *GalleryService) Search(ctx context.Context, query, page string) ([]domain.ListItem, *domain.Pagination) {
	return s.list(ctx, domain.KindSearch, s.SearchURL(query, page))
}

// SearchURL builds <base>/page/<page>/?s=<query>. Non-positive or non-numeric pages become 1.
func (s *GalleryService) SearchURL(query, page string) string {
	n, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || n < 1 {
		n = 1
	}
	escaped := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return s.opts.BaseURL + "/page/" + strconv.Itoa(n) + "/?s=" + escaped
}

// DetailPage collects the images of the gallery starting at detailURL, following its
// next-page links.
func (s *GalleryService) DetailPage(ctx context.Context, detailURL string) []domain.GalleryImage {
	return s.detail(ctx, domain.KindDetail, detailURL)
}

// Random collects the gallery the upstream random endpoint redirects to.
func (s *GalleryService) Random(ctx context.Context) []domain.GalleryImage {
	return s.detail(ctx, domain.KindRandom, s.opts.BaseURL+randomPath)
}

func (s *GalleryService) list(ctx context.Context, kind domain.ScrapeKind, pageURL string) ([]domain.ListItem, *domain.Pagination) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL), attribute.String("kind", string(kind)))

	rec := newRecord(kind, pageURL)
	items := []domain.ListItem{}
	var pagination *domain.Pagination

	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		rec.FetchFailures = 1
		rec.Partial = true
	} else {
		rec.Pages = 1
		parsedItems, parsedPagination, err := parser.ParseListing(bytes.NewReader(page.Body))
		if err != nil {
			span.RecordError(err)
			slog.Warn("Failed to parse listing", "url", pageURL, "error", err)
			rec.Partial = true
		} else {
			items, pagination = parsedItems, parsedPagination
		}
	}

	metrics.ExtractedEntries.WithLabelValues("list_item").Add(float64(len(items)))
	span.SetAttributes(attribute.Int("items", len(items)))

	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	s.finish(ctx, rec, urls)

	return items, pagination
}

type traversal struct {
	images   []domain.GalleryImage
	pages    int
	failures int
	aborted  string
}

func (s *GalleryService) detail(ctx context.Context, kind domain.ScrapeKind, startURL string) []domain.GalleryImage {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "DetailPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", startURL), attribute.String("kind", string(kind)))

	rec := newRecord(kind, startURL)
	tr := s.traverse(ctx, startURL)

	metrics.ExtractedEntries.WithLabelValues("gallery_image").Add(float64(len(tr.images)))
	metrics.DetailPagesFollowed.Observe(float64(tr.pages))
	if tr.aborted != "" {
		metrics.DetailTraversalsAborted.WithLabelValues(tr.aborted).Inc()
	}
	span.SetAttributes(
		attribute.Int("images", len(tr.images)),
		attribute.Int("pages", tr.pages),
		attribute.Int("fetch_failures", tr.failures),
	)

	slog.Info("Detail traversal finished",
		"url", startURL,
		"kind", kind,
		"pages", tr.pages,
		"images", len(tr.images),
		"fetch_failures", tr.failures,
		"aborted", tr.aborted)

	rec.Pages = tr.pages
	rec.FetchFailures = tr.failures
	rec.Partial = tr.aborted != ""
	urls := make([]string, 0, len(tr.images))
	for _, img := range tr.images {
		urls = append(urls, img.URL)
	}
	s.finish(ctx, rec, urls)

	return tr.images
}

// traverse walks the gallery page by page. A failed fetch retries the same URL until
// the shared failure budget is exceeded; images of a failed page are never included.
func (s *GalleryService) traverse(ctx context.Context, startURL string) traversal {
	tr := traversal{images: []domain.GalleryImage{}}
	visited := make(map[string]bool)
	current := startURL

	for current != "" {
		if ctx.Err() != nil {
			tr.aborted = abortCancelled
			break
		}

		page, err := s.fetcher.Fetch(ctx, current)
		if err != nil {
			tr.failures++
			if tr.failures > s.opts.RetryBudget {
				slog.Warn("Retry budget exhausted, returning partial gallery",
					"url", current, "failures", tr.failures, "images", len(tr.images))
				tr.aborted = abortRetryBudget
				break
			}
			metrics.DetailRetries.Inc()
			slog.Info("Retrying detail page", "url", current, "attempt", tr.failures+1, "budget", s.opts.RetryBudget)
			if !s.pause(ctx) {
				tr.aborted = abortCancelled
				break
			}
			continue
		}

		tr.pages++
		visited[current] = true
		base := current
		if page.FinalURL != "" {
			visited[page.FinalURL] = true
			base = page.FinalURL
		}

		images, next, err := parser.ParseGallery(bytes.NewReader(page.Body))
		if err != nil {
			slog.Warn("Failed to parse gallery page", "url", current, "error", err)
			tr.aborted = abortParse
			break
		}
		tr.images = append(tr.images, images...)
		slog.Debug("Parsed gallery page", "url", current, "images", len(images), "next", next)

		if next == "" {
			break
		}
		next = resolveURL(base, next)
		if visited[next] {
			slog.Warn("Gallery next link loops back, stopping", "url", current, "next", next)
			tr.aborted = abortCycle
			break
		}
		if s.opts.MaxPages > 0 && tr.pages >= s.opts.MaxPages {
			slog.Warn("Gallery page limit reached", "url", startURL, "max_pages", s.opts.MaxPages)
			tr.aborted = abortMaxPages
			break
		}
		current = next
	}

	return tr
}

// pause waits RetryBackoff before a retry. It returns false if ctx ends first.
func (s *GalleryService) pause(ctx context.Context) bool {
	if s.opts.RetryBackoff <= 0 {
		return true
	}
	timer := time.NewTimer(s.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *GalleryService) finish(ctx context.Context, rec *domain.ScrapeRecord, urls []string) {
	rec.Items = len(urls)
	rec.ResultHash = domain.HashURLs(urls)
	rec.DurationMS = time.Since(rec.StartedAt).Milliseconds()
	if s.recorder != nil {
		s.recorder.Dispatch(ctx, rec)
	}
}

func newRecord(kind domain.ScrapeKind, target string) *domain.ScrapeRecord {
	return &domain.ScrapeRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		URL:       target,
		StartedAt: time.Now().UTC(),
	}
}

// resolveURL resolves a possibly relative href against the page it was found on.
func resolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
