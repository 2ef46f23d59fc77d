// Command mockbackend serves the recognition, patient directory and queue
// token endpoints from local files so the kiosk can run without the
// hospital backend.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"patientflow/internal/mockbackend"
	"patientflow/internal/platform/httpserver"
	"patientflow/internal/platform/logger"
	"patientflow/internal/verification/directory"
)

type config struct {
	Addr       string        `env:"MOCKBACKEND_ADDR" envDefault:":9090"`
	LogLevel   string        `env:"MOCKBACKEND_LOG_LEVEL" envDefault:"debug"`
	Patients   string        `env:"MOCKBACKEND_PATIENTS,required"`
	Scans      string        `env:"MOCKBACKEND_SCANS"`
	SigningKey string        `env:"MOCKBACKEND_SIGNING_KEY" envDefault:"dev-queue-signing-key"`
	Counter    string        `env:"MOCKBACKEND_COUNTER" envDefault:"A1"`
	TokenTTL   time.Duration `env:"MOCKBACKEND_TOKEN_TTL" envDefault:"30m"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}
	logger := logger.New(cfg.LogLevel, "text")

	patients := directory.NewCache()
	n, err := patients.LoadSeedFile(cfg.Patients, time.Now())
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}

	opts := []mockbackend.Option{mockbackend.WithLogger(logger)}
	if cfg.Scans != "" {
		scans, err := mockbackend.LoadScanScript(cfg.Scans)
		if err != nil {
			log.Fatalf("load scans: %v", err)
		}
		opts = append(opts, mockbackend.WithScanScript(scans))
	}

	tokens := mockbackend.NewTokenIssuer(cfg.SigningKey, "patientflow-mockbackend", cfg.Counter, cfg.TokenTTL)
	srv, err := mockbackend.New(patients, tokens, opts...)
	if err != nil {
		log.Fatalf("build mock backend: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mock backend ready", "patients", n, "scans", cfg.Scans)
	if err := httpserver.Run(ctx, httpserver.New(cfg.Addr, srv.Router()), 5*time.Second, logger); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
