package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "The total number of upstream page fetches by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Duration of upstream page fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExtractedEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extracted_entries_total",
			Help: "The total number of list items and gallery images extracted",
		},
		[]string{"kind"},
	)

	DetailPagesFollowed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detail_pages_followed",
			Help:    "Number of pages visited per detail traversal",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	DetailRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detail_fetch_retries_total",
			Help: "Total number of failed fetches retried during detail traversal",
		},
	)

	DetailTraversalsAborted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detail_traversals_aborted_total",
			Help: "Detail traversals that ended before the gallery's last page",
		},
		[]string{"reason"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served",
		},
		[]string{"route"},
	)

	RecordSinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_sink_errors_total",
			Help: "Total number of scrape records a sink failed to accept",
		},
		[]string{"sink"},
	)
)
