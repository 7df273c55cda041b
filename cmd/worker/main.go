// Command worker runs the triage processing side: it consumes queued report
// ids, classifies them, commits verdicts, sweeps the dead-letter queue, and
// relays committed rows into the search index. Horizontal scale comes from
// running more worker processes in the same consumer group.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicgrid/triage/internal/bootstrap"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/telemetry"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := bootstrap.CreateLogger(cfg, "triage-worker")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	tp := telemetry.NewProvider()

	dbComps, err := bootstrap.SetupDatabase(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to set up database", logger.Error(err))
	}
	defer func() { _ = dbComps.DB.Close() }()

	streams, err := bootstrap.SetupStreams(cfg, appLog)
	if err != nil {
		_ = dbComps.DB.Close()
		appLog.Fatal("Failed to set up streams", logger.Error(err))
	}
	defer func() { _ = streams.Close() }()

	comps, err := bootstrap.NewWorkerComponents(cfg, dbComps, streams, appLog, tp)
	if err != nil {
		_ = streams.Close()
		_ = dbComps.DB.Close()
		appLog.Fatal("Failed to build worker components", logger.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := comps.Processor.Start(ctx); err != nil {
		_ = streams.Close()
		_ = dbComps.DB.Close()
		appLog.Fatal("Failed to start processor", logger.Error(err))
	}
	comps.Sweeper.Start(ctx)
	if comps.Relay != nil {
		comps.Relay.Start(ctx)
	}

	appLog.Info("Worker started", logger.String("worker_id", comps.WorkerID))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	appLog.Info("Shutdown signal received", logger.String("signal", sig.String()))

	comps.Processor.Stop()
	comps.Sweeper.Stop()
	if comps.Relay != nil {
		comps.Relay.Stop()
	}

	appLog.Info("Worker stopped gracefully")
}
