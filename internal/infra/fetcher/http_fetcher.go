package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/metrics"
	"github.com/PhotobookScraper/pkg/config"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html/charset"
)

var (
	// ErrHTTPStatus marks an upstream response with status >= 400.
	ErrHTTPStatus = errors.New("upstream returned error status")
	// ErrInvalidURL marks a URL that cannot be requested (bad syntax, scheme or host).
	ErrInvalidURL = errors.New("invalid url")
)

// StatusError carries the upstream status code and unwraps to ErrHTTPStatus.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrHTTPStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}

// maxBodySize caps how much of a single page is read.
const maxBodySize = 16 << 20

// ErrBodyTooLarge marks a response body over the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// BreakerSettings configures the per-host circuit breakers.
type BreakerSettings struct {
	FailureThreshold int
	OpenTimeout      time.Duration
}

// HTTPFetcher fetches upstream pages with a fixed header set, optional proxy and bounded
// timeouts. It never retries; a failure is logged once and returned as an error.
// Each host has its own breaker, so a dead host never blocks fetches to another.
type HTTPFetcher struct {
	client     *http.Client
	headers    http.Header
	cbSettings gobreaker.Settings
	maxBody    int64

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewHTTPFetcher(upstream config.UpstreamConfig, breaker BreakerSettings) (*HTTPFetcher, error) {
	proxy, err := proxyFunc(upstream.Proxies)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   upstream.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   upstream.ConnectTimeout,
		ResponseHeaderTimeout: upstream.ReadTimeout,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	headers := http.Header{}
	headers.Set("User-Agent", upstream.UserAgent)
	headers.Set("Accept-Language", upstream.AcceptLanguage)
	headers.Set("Referer", upstream.Referer)

	threshold := breaker.FailureThreshold
	if threshold < 1 {
		threshold = 5
	}
	cbSettings := gobreaker.Settings{
		MaxRequests: 1,
		Timeout:     breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   upstream.ConnectTimeout + upstream.ReadTimeout,
		},
		headers:    headers,
		cbSettings: cbSettings,
		maxBody:    maxBodySize,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// breakerFor returns the breaker of rawURL's host, creating it on first use.
// Unparseable URLs share the "" entry; they never count as failures.
func (f *HTTPFetcher) breakerFor(rawURL string) *gobreaker.CircuitBreaker {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = strings.ToLower(u.Host)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cb, ok := f.breakers[host]
	if !ok {
		settings := f.cbSettings
		settings.Name = "upstream:" + host
		cb = gobreaker.NewCircuitBreaker(settings)
		f.breakers[host] = cb
	}
	return cb
}

// Fetch issues a single GET. Any fault (bad URL, transport error, status >= 400,
// open breaker) is logged with the URL and returned as the failure marker.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.Page, error) {
	ctx, span := otel.Tracer("photobook-scraper").Start(ctx, "fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	start := time.Now()
	result, err := f.breakerFor(rawURL).Execute(func() (interface{}, error) {
		return f.get(ctx, rawURL)
	})
	metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.UpstreamFetches.WithLabelValues(outcome(err)).Inc()
		slog.Error("fetch error", "url", rawURL, "error", err)
		return nil, err
	}

	page := result.(*domain.Page)
	span.SetAttributes(attribute.Int("status_code", page.StatusCode))
	metrics.UpstreamFetches.WithLabelValues("success").Inc()
	return page, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*domain.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range f.headers {
		req.Header[key] = values
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := readUTF8(resp.Body, contentType, f.maxBody)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &domain.Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// readUTF8 reads at most limit bytes and decodes them to UTF-8. A longer body is an
// error rather than a truncated page.
func readUTF8(r io.Reader, contentType string, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(utf8Reader)
}

// proxyFunc builds the transport proxy selector. Without an explicit proxy map the
// standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment applies. A value without a
// scheme is taken as an http proxy.
func proxyFunc(proxies map[string]string) (func(*http.Request) (*url.URL, error), error) {
	if len(proxies) == 0 {
		return http.ProxyFromEnvironment, nil
	}

	parsed := make(map[string]*url.URL, len(proxies))
	for scheme, raw := range proxies {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url for %s: %w", scheme, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url for %s: missing host in %q", scheme, raw)
		}
		parsed[scheme] = u
	}

	return func(req *http.Request) (*url.URL, error) {
		if u, ok := parsed[req.URL.Scheme]; ok {
			return u, nil
		}
		return parsed["all"], nil
	}, nil
}

// countsAsHealthy tells the breaker which results say nothing about upstream health:
// caller-side URL problems, 4xx answers and cancelled requests.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidURL) || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500
	}
	return false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrHTTPStatus):
		return "http_error"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	default:
		return "transport_error"
	}
}
