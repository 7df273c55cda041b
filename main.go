// Command triage runs the whole service in one process: the lifecycle API,
// the classification worker, the DLQ sweeper, and the search relay, all over
// one database pool and one Redis client. Split deployments use cmd/httpd
// and cmd/worker instead.
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

	appLog, err := bootstrap.CreateLogger(cfg, "triage")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	appLog.Info("Starting triage service",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.Bool("debug", cfg.Service.Debug))

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

	httpComps := bootstrap.NewHTTPComponents(cfg, dbComps, streams, appLog, tp)

	workerComps, err := bootstrap.NewWorkerComponents(cfg, dbComps, streams, appLog, tp)
	if err != nil {
		_ = streams.Close()
		_ = dbComps.DB.Close()
		appLog.Fatal("Failed to build worker components", logger.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerComps.Processor.Start(ctx); err != nil {
		_ = streams.Close()
		_ = dbComps.DB.Close()
		appLog.Fatal("Failed to start processor", logger.Error(err))
	}
	workerComps.Sweeper.Start(ctx)
	if workerComps.Relay != nil {
		workerComps.Relay.Start(ctx)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpComps.Server.Start()
	}()

	appLog.Info("Triage service started", logger.String("worker_id", workerComps.WorkerID))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		appLog.Error("Server error", logger.Error(err))
		exitCode = 1
	case sig := <-shutdown:
		appLog.Info("Shutdown signal received", logger.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), bootstrap.HTTPShutdownTimeout())
	defer shutdownCancel()
	if err := httpComps.Server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Graceful shutdown failed", logger.Error(err))
		exitCode = 1
	}

	workerComps.Processor.Stop()
	workerComps.Sweeper.Stop()
	if workerComps.Relay != nil {
		workerComps.Relay.Stop()
	}

	appLog.Info("Triage service stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
