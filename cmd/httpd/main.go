// Command httpd serves the report lifecycle API and the triage monitoring
// surface. Classification itself runs in the worker; this process only
// reads pipeline state and drives status transitions.
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

	appLog, err := bootstrap.CreateLogger(cfg, "triage-api")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	appLog.Info("Starting triage API server",
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

	comps := bootstrap.NewHTTPComponents(cfg, dbComps, streams, appLog, tp)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- comps.Server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		appLog.Error("Server error", logger.Error(err))
		os.Exit(1)
	case sig := <-shutdown:
		appLog.Info("Shutdown signal received", logger.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), bootstrap.HTTPShutdownTimeout())
		defer cancel()

		if err := comps.Server.Shutdown(ctx); err != nil {
			appLog.Error("Graceful shutdown failed", logger.Error(err))
			os.Exit(1)
		}

		appLog.Info("Server stopped gracefully")
	}
}
