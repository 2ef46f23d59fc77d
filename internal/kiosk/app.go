// Package kiosk assembles the verification subsystem for one kiosk host:
// the camera device, the collaborator clients, the session store, the
// outcome event sink and the HTTP API the front-end drives.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"patientflow/internal/platform/config"
	"patientflow/internal/platform/httpserver"
	"patientflow/internal/platform/i18n"
	"patientflow/internal/platform/metrics"
	"patientflow/internal/platform/ratelimit"
	redisclient "patientflow/internal/platform/redis"
	"patientflow/internal/verification/capture"
	"patientflow/internal/verification/directory"
	"patientflow/internal/verification/events"
	"patientflow/internal/verification/flow"
	"patientflow/internal/verification/handler"
	"patientflow/internal/verification/media"
	vmetrics "patientflow/internal/verification/metrics"
	"patientflow/internal/verification/policy"
	"patientflow/internal/verification/ports"
	"patientflow/internal/verification/recognition"
	"patientflow/internal/verification/scheduler"
	"patientflow/internal/verification/store"
)

// App is a fully wired kiosk process.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	messages i18n.Messages
	metrics  *vmetrics.Metrics

	camera     media.Device
	capturer   *capture.Capturer
	recognizer ports.Recognizer
	directory  *directory.CachingDirectory
	policy     *policy.Policy
	stores     store.Factory
	dispatcher *events.Dispatcher

	handler *handler.Handler
	router  http.Handler
	closers []func() error
}

// Build wires every component from cfg. Redis and Kafka are contacted here,
// so a misconfigured backend fails fast.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		messages: i18n.New(cfg.Verification.Locale),
	}
	health := map[string]handler.HealthCheck{}

	reg := metrics.New()
	a.metrics = vmetrics.New(reg)

	if err := a.buildStore(ctx, health); err != nil {
		a.close()
		return nil, err
	}
	sink, err := a.buildEvents(health)
	if err != nil {
		a.close()
		return nil, err
	}
	a.dispatcher = events.NewDispatcher(sink, events.DefaultBuffer, logger)

	if err := a.buildDirectory(); err != nil {
		a.close()
		return nil, err
	}
	a.recognizer = recognition.New(cfg.Backend.RecognitionBaseURL(),
		recognition.WithLogger(logger),
		recognition.WithMetrics(a.metrics),
	)

	a.policy, err = policy.New(a.directory,
		policy.WithConfidenceThreshold(cfg.Verification.ConfidenceThreshold),
		policy.WithMaxAttempts(cfg.Verification.MaxAttempts),
		policy.WithMessages(a.messages),
		policy.WithLogger(logger),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build policy: %w", err)
	}

	a.camera = media.NewSnapshotCamera(cfg.Camera.SnapshotURL,
		media.WithHTTPClient(&http.Client{Timeout: cfg.Camera.RequestTimeout}),
		media.WithFrameInterval(cfg.Camera.FrameInterval),
		media.WithCameraLogger(logger),
	)
	a.capturer = capture.New()

	var handlerOpts []handler.Option
	if v := cfg.Verification; v.IDInputLimit > 0 {
		handlerOpts = append(handlerOpts,
			handler.WithIDInputLimiter(ratelimit.NewSlidingWindow(v.IDInputLimit, v.IDInputWindow)))
	}
	a.handler = handler.New(a.NewSession, logger, handlerOpts...)
	a.router = handler.NewRouter(a.handler, handler.RouterConfig{
		Logger:  logger,
		Metrics: reg.Handler(),
		Health:  health,
	})
	return a, nil
}

func (a *App) buildStore(ctx context.Context, health map[string]handler.HealthCheck) error {
	switch a.cfg.Store.Driver {
	case "redis":
		rc, err := redisclient.New(ctx, a.cfg.Store.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		health["redis"] = rc.Health
		a.stores = store.NewRedis(rc.Client, a.cfg.Store.Namespace, a.cfg.Store.TTL)
	default:
		a.stores = store.NewMemory()
	}
	return nil
}

func (a *App) buildEvents(health map[string]handler.HealthCheck) (ports.EventPublisher, error) {
	if a.cfg.Events.Driver != "kafka" {
		return events.NewLogPublisher(a.logger), nil
	}
	client, err := events.NewKafkaClient(a.cfg.Events.Brokers, a.cfg.Events.Topic)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	health["kafka"] = client.Ping
	return events.NewKafkaPublisher(client, a.cfg.Events.Topic,
		events.WithProduceTimeout(a.cfg.Events.ProduceTimeout),
		events.WithKafkaLogger(a.logger),
	), nil
}

func (a *App) buildDirectory() error {
	cache := directory.NewCache()
	if path := a.cfg.PatientCacheSeed; path != "" {
		n, err := cache.LoadSeedFile(path, time.Now())
		if err != nil {
			return err
		}
		a.logger.Info("patient cache seeded", "patients", n, "path", path)
	}
	client := directory.NewClient(a.cfg.Backend.BaseURL,
		directory.WithHTTPClient(&http.Client{Timeout: a.cfg.Backend.Timeout}),
		directory.WithLogger(a.logger),
	)
	a.directory = directory.NewCachingDirectory(client, cache, a.logger)
	return nil
}

// NewSession builds a verification session for one kiosk terminal. The
// camera device, capturer and policy are shared; each session gets its own
// camera stream, scheduler and a store scoped to the terminal.
func (a *App) NewSession(_ context.Context, kioskID string) (handler.Flow, error) {
	v := a.cfg.Verification
	logger := a.logger.With("kiosk_id", kioskID)

	sched := scheduler.New(scheduler.Config{
		Interval:      v.ScanInterval,
		Tick:          v.CountdownTick,
		BudgetSeconds: v.BudgetSeconds,
	}, scheduler.WithLogger(logger), scheduler.WithMetrics(a.metrics))

	m, err := flow.New(flow.Deps{
		Camera:     a.newCamera(logger),
		Capturer:   a.capturer,
		Recognizer: a.recognizer,
		Policy:     a.policy,
		Scheduler:  sched,
		Lookup:     a.directory,
		Tokens:     a.directory,
		Store:      a.stores.Scope(kioskID),
		Events:     a.dispatcher,
	},
		flow.WithTokenPolicy(flow.TokenPolicy(v.TokenPolicy)),
		flow.WithMessages(a.messages),
		flow.WithLogger(logger),
		flow.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build verification session: %w", err)
	}
	return m, nil
}

// newCamera gives a session its own stream manager over the shared device,
// so releasing one session's stream leaves the others playing.
func (a *App) newCamera(logger *slog.Logger) *media.Manager {
	c := a.cfg.Camera
	return media.NewManager(a.camera, media.NewFrameSink(),
		media.WithAcquireAttempts(c.AcquireAttempts),
		media.WithPlayTimeout(c.PlayTimeout),
		media.WithMessages(a.messages),
		media.WithLogger(logger),
		media.WithMetrics(a.metrics),
	)
}

// Router is the kiosk HTTP API.
func (a *App) Router() http.Handler {
	return a.router
}

// Run serves the API and drains outcome events until ctx ends, then closes
// every open session and the backend connections.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := httpserver.New(a.cfg.Server.Addr, a.router)
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, a.cfg.Server.ShutdownTimeout, a.logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.handler.Shutdown(shutdownCtx)
		stopEvents()
		return nil
	})

	dispatched := make(chan error, 1)
	go func() { dispatched <- a.dispatcher.Run(eventsCtx) }()

	err := g.Wait()
	stopEvents()
	if derr := <-dispatched; derr != nil {
		err = errors.Join(err, derr)
	}
	return err
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
