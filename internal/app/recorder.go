package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/metrics"
	"github.com/PhotobookScraper/pkg/logging"
)

const defaultSinkTimeout = 3 * time.Second

// RecordDispatcher hands scrape records to every configured sink in the background.
// Sink failures are logged (sampled) and never reach the API response.
type RecordDispatcher struct {
	sinks   []domain.RecordSink
	sampler *logging.ErrorSampler
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecordDispatcher(sinks []domain.RecordSink) *RecordDispatcher {
	return &RecordDispatcher{
		sinks:   sinks,
		sampler: logging.NewErrorSampler(20),
		timeout: defaultSinkTimeout,
	}
}

// Dispatch sends rec to all sinks without blocking the caller.
func (d *RecordDispatcher) Dispatch(ctx context.Context, rec *domain.ScrapeRecord) {
	if len(d.sinks) == 0 {
		return
	}

	// The request context ends as soon as the response is written.
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink domain.RecordSink) {
			defer d.wg.Done()
			d.send(base, sink, rec)
		}(sink)
	}
}

func (d *RecordDispatcher) send(ctx context.Context, sink domain.RecordSink, rec *domain.ScrapeRecord) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	name := sink.Name()
	if err := sink.Record(ctx, rec); err != nil {
		metrics.RecordSinkErrors.WithLabelValues(name).Inc()
		if shouldLog, streak := d.sampler.Failure(name); shouldLog {
			slog.Error("Failed to record scrape", "sink", name, "id", rec.ID, "error", err, "consecutive_failures", streak)
		}
		return
	}

	if d.sampler.Success(name) {
		slog.Info("Record sink recovered", "sink", name)
	}
}

// Wait blocks until in-flight dispatches finish or ctx ends.
func (d *RecordDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
