package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ListItem is one entry of a category or search listing.
type ListItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Thumb string `json:"thumb"`
}

// PageLink points at one numbered page of a listing.
type PageLink struct {
	Num int    `json:"num"`
	URL string `json:"url"`
}

// Pagination describes the listing's page navigation.
// Last is nil when no page links were found, otherwise it equals the Num of the final link.
type Pagination struct {
	Pages   []PageLink `json:"pages"`
	Current int        `json:"current"`
	Last    *int       `json:"last"`
}

// NewPagination returns the pagination used when a listing has no navigation block.
func NewPagination() *Pagination {
	return &Pagination{Pages: []PageLink{}, Current: 1}
}

// GalleryImage is one image of a detail gallery.
type GalleryImage struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Page is a successfully fetched upstream document.
type Page struct {
	URL         string
	FinalURL    string // after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher retrieves upstream pages. A non-nil error marks a failed fetch that the
// implementation has already logged; callers only decide whether to retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ScrapeKind names the API operation that produced a ScrapeRecord.
type ScrapeKind string

const (
	KindCategory ScrapeKind = "category"
	KindSearch   ScrapeKind = "search"
	KindRandom   ScrapeKind = "random"
	KindDetail   ScrapeKind = "detail"
)

// ScrapeRecord is an audit event describing one served extraction.
type ScrapeRecord struct {
	ID            string     `json:"id" bson:"_id"`
	Kind          ScrapeKind `json:"kind" bson:"kind"`
	URL           string     `json:"url" bson:"url"`
	Items         int        `json:"items" bson:"items"`
	Pages         int        `json:"pages" bson:"pages"`
	FetchFailures int        `json:"fetch_failures" bson:"fetch_failures"`
	Partial       bool       `json:"partial" bson:"partial"`
	ResultHash    string     `json:"result_hash" bson:"result_hash"`
	StartedAt     time.Time  `json:"started_at" bson:"started_at"`
	DurationMS    int64      `json:"duration_ms" bson:"duration_ms"`
}

// HashURLs returns a deterministic digest of the result URLs, so consumers can tell
// whether a gallery or listing changed between two scrapes.
func HashURLs(urls []string) string {
	hasher := sha256.New()
	for _, u := range urls {
		hasher.Write([]byte(u))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// RecordSink receives scrape records (audit store, event stream).
type RecordSink interface {
	Name() string
	Record(ctx context.Context, rec *ScrapeRecord) error
}
