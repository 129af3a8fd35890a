package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/PhotobookScraper/cmd/server/factory"
	"github.com/PhotobookScraper/internal/app"
	"github.com/PhotobookScraper/internal/infra/tracing"
	transport "github.com/PhotobookScraper/internal/transport/http"
	"github.com/PhotobookScraper/pkg/config"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			// Infrastructure
			factory.NewMongoClient,
			factory.NewKafkaProducer,
			factory.NewHTTPFetcher,

			// Record sinks
			factory.NewRecordSinks,
			factory.NewRecordDispatcher,

			// Services
			factory.NewGalleryService,
			factory.NewReadinessChecker,

			// HTTP Server
			transport.NewHTTPServer,
		),
		fx.Invoke(
			SetupTracer,
			LogReadiness,
			RegisterHooks,
			StartServer,
		),
	).Run()
}

// --- Invokers ---

func SetupTracer(lc fx.Lifecycle, cfg *config.Config) error {
	ctx := context.Background()
	shutdown, err := tracing.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

// LogReadiness reports the record sinks' state at startup. The API serves
// without them, so a failure is not fatal.
func LogReadiness(checker *app.ReadinessChecker) {
	if err := checker.Check(context.Background()); err != nil {
		slog.Warn("Record sinks not ready, scrapes will not be recorded until they recover", "error", err)
		return
	}
	slog.Info("Dependencies ready")
}

// RegisterHooks drains pending scrape records before the sinks are closed.
// fx runs OnStop hooks in reverse order, so this runs before the Mongo and Kafka hooks.
func RegisterHooks(lc fx.Lifecycle, dispatcher *app.RecordDispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := dispatcher.Wait(ctx); err != nil {
				slog.Warn("Pending scrape records dropped on shutdown", "error", err)
			}
			return nil
		},
	})
}

func StartServer(lc fx.Lifecycle, server *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				slog.Info("Starting API server", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
