package http

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/PhotobookScraper/internal/app"
	"github.com/PhotobookScraper/internal/domain"
	"github.com/PhotobookScraper/internal/infra/metrics"
	"github.com/PhotobookScraper/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// GalleryAPI is the extraction surface the handlers need.
type GalleryAPI interface {
	ListPage(ctx context.Context, pageURL string) ([]domain.ListItem, *domain.Pagination)
	Search(ctx context.Context, query, page string) ([]domain.ListItem, *domain.Pagination)
	DetailPage(ctx context.Context, detailURL string) []domain.GalleryImage
	Random(ctx context.Context) []domain.GalleryImage
}

// ReadinessProbe reports whether the service's dependencies are reachable.
type ReadinessProbe interface {
	Check(ctx context.Context) error
}

// listResponse is the body of the category and search endpoints.
type listResponse struct {
	Items      []domain.ListItem  `json:"items"`
	Pagination *domain.Pagination `json:"pagination"`
}

func NewHTTPServer(cfg *config.Config, svc *app.GalleryService, readiness *app.ReadinessChecker) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(svc, readiness, cfg.Upstream.BaseURL),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter wires the API, probes and metrics. Every API route answers 200 with
// best-effort JSON, even when the upstream site is unreachable.
func NewRouter(svc GalleryAPI, readiness ReadinessProbe, upstream string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, map[string]string{"Upstream": upstream}); err != nil {
			slog.Error("Failed to render index", "error", err)
		}
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/category", func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRequests.WithLabelValues("category").Inc()
		items, pagination := svc.ListPage(r.Context(), r.URL.Query().Get("url"))
		writeJSON(w, listResponse{Items: items, Pagination: pagination})
	}).Methods(http.MethodGet)

	api.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRequests.WithLabelValues("search").Inc()
		q := r.URL.Query()
		page := q.Get("page")
		if page == "" {
			page = "1"
		}
		items, pagination := svc.Search(r.Context(), q.Get("q"), page)
		writeJSON(w, listResponse{Items: items, Pagination: pagination})
	}).Methods(http.MethodGet)

	api.HandleFunc("/random", func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRequests.WithLabelValues("random").Inc()
		writeJSON(w, svc.Random(r.Context()))
	}).Methods(http.MethodGet)

	api.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRequests.WithLabelValues("detail").Inc()
		writeJSON(w, svc.DetailPage(r.Context(), r.URL.Query().Get("url")))
	}).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := readiness.Check(ctx); err != nil {
			slog.Warn("Readiness check failed", "error", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
