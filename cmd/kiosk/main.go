// Command kiosk runs the patient identity verification flow for one kiosk
// host and serves the API its front-end drives.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"patientflow/internal/kiosk"
	"patientflow/internal/platform/config"
	"patientflow/internal/platform/logger"
	"patientflow/internal/platform/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	app, err := kiosk.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build kiosk", "error", err)
		os.Exit(1)
	}

	logger.Info("starting kiosk",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"events", cfg.Events.Driver,
		"token_policy", cfg.Verification.TokenPolicy,
	)
	if err := app.Run(ctx); err != nil {
		logger.Error("kiosk stopped", "error", err)
		os.Exit(1)
	}
}
