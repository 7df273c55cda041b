package bootstrap

import (
	"context"
	"time"

	"github.com/civicgrid/triage/internal/api"
	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/health"
	"github.com/civicgrid/triage/internal/lifecycle"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/notify"
	"github.com/civicgrid/triage/internal/queue"
	"github.com/civicgrid/triage/internal/telemetry"
	"github.com/civicgrid/triage/internal/zeroshot"
)

// defaultHTTPShutdownTimeout caps graceful drain of in-flight requests.
const defaultHTTPShutdownTimeout = 30 * time.Second

// HTTPComponents holds the assembled API server. The database and streams
// connections are owned by the caller so a combined process can share them
// with the worker.
type HTTPComponents struct {
	Handler *api.Handler
	Checker *health.Checker
	Server  *api.Server
}

// NewHTTPComponents assembles the API server: the lifecycle service over the
// repositories, the monitoring readers over the streams and the DLQ, and the
// health checker folding every dependency probe.
func NewHTTPComponents(
	cfg *config.Config,
	dbComps *DatabaseComponents,
	streams *queue.StreamsClient,
	log logger.Logger,
	tp *telemetry.Provider,
) *HTTPComponents {
	notifier := notify.NewDispatcher(streams, cfg.Queue, log)
	lc := lifecycle.NewService(
		dbComps.Reports,
		dbComps.Appeals,
		dbComps.Feedback,
		dbComps.Escalations,
		notifier,
		cfg.Lifecycle,
		log,
		tp,
	)

	producer := queue.NewProducer(streams, cfg.Queue)
	workers := func(ctx context.Context) (map[string]time.Time, error) {
		return queue.Workers(ctx, streams, cfg.Worker.HeartbeatPrefix)
	}

	handler := api.NewHandler(lc, dbComps.Reports, dbComps.History, producer, dbComps.DeadLetters, workers, log)

	checker := health.NewChecker()
	checker.RegisterFunc("postgres", dbComps.DB.PingContext)
	checker.RegisterFunc("redis", streams.Ping)
	registerSidecarProbes(checker, cfg)

	server := api.NewServer(cfg.Service, handler, checker, tp, log)

	return &HTTPComponents{
		Handler: handler,
		Checker: checker,
		Server:  server,
	}
}

// registerSidecarProbes adds the classification sidecars as optional probes.
// Their failure degrades the service instead of failing it: the API keeps
// serving lifecycle requests while classification backs up behind the worker.
func registerSidecarProbes(checker *health.Checker, cfg *config.Config) {
	zs := zeroshot.NewClient(cfg.ZeroShot)
	checker.RegisterOptionalFunc("zeroshot", func(ctx context.Context) error {
		_, _, _, err := zs.Health(ctx)
		return err
	})

	if cfg.Embedding.URL != "" {
		embed := zeroshot.NewEmbedClient(cfg.Embedding)
		checker.RegisterOptionalFunc("embedding", func(ctx context.Context) error {
			_, _, _, err := embed.Health(ctx)
			return err
		})
	}
}

// HTTPShutdownTimeout returns the timeout for HTTP server graceful shutdown.
func HTTPShutdownTimeout() time.Duration {
	return defaultHTTPShutdownTimeout
}
