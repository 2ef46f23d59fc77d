package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Token policies for a failed queue token request after acceptance.
const (
	TokenPolicyFailOpen   = "fail_open"
	TokenPolicyFailClosed = "fail_closed"
)

// Config is the kiosk process configuration, read from the environment.
type Config struct {
	Server       Server
	Verification Verification
	Camera       Camera
	Backend      Backend
	Store        Store
	Events       Events
	Tracing      Tracing

	// PatientCacheSeed is an optional JSON file of known patients.
	PatientCacheSeed string `env:"PATIENTFLOW_PATIENT_SEED"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"PATIENTFLOW_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"PATIENTFLOW_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"PATIENTFLOW_LOG_FORMAT" envDefault:"text"`
	ShutdownTimeout time.Duration `env:"PATIENTFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Verification tunes the automatic scan flow.
type Verification struct {
	ScanInterval        time.Duration `env:"PATIENTFLOW_SCAN_INTERVAL" envDefault:"3s"`
	CountdownTick       time.Duration `env:"PATIENTFLOW_COUNTDOWN_TICK" envDefault:"1s"`
	BudgetSeconds       int           `env:"PATIENTFLOW_SCAN_BUDGET_SECONDS" envDefault:"60"`
	MaxAttempts         int           `env:"PATIENTFLOW_MAX_ATTEMPTS" envDefault:"5"`
	ConfidenceThreshold float64       `env:"PATIENTFLOW_CONFIDENCE_THRESHOLD" envDefault:"0.75"`
	TokenPolicy         string        `env:"PATIENTFLOW_TOKEN_POLICY" envDefault:"fail_open"`
	Locale              string        `env:"PATIENTFLOW_LOCALE" envDefault:"th"`
	// IDInputLimit caps national ID submissions per kiosk per IDInputWindow.
	// Zero disables the limit.
	IDInputLimit  int           `env:"PATIENTFLOW_ID_INPUT_LIMIT" envDefault:"10"`
	IDInputWindow time.Duration `env:"PATIENTFLOW_ID_INPUT_WINDOW" envDefault:"1m"`
}

// Camera locates the kiosk snapshot camera.
type Camera struct {
	SnapshotURL     string        `env:"PATIENTFLOW_CAMERA_URL" envDefault:"http://127.0.0.1:8081/snapshot.jpg"`
	FrameInterval   time.Duration `env:"PATIENTFLOW_CAMERA_FRAME_INTERVAL" envDefault:"200ms"`
	RequestTimeout  time.Duration `env:"PATIENTFLOW_CAMERA_REQUEST_TIMEOUT" envDefault:"3s"`
	PlayTimeout     time.Duration `env:"PATIENTFLOW_CAMERA_PLAY_TIMEOUT" envDefault:"5s"`
	AcquireAttempts int           `env:"PATIENTFLOW_CAMERA_ACQUIRE_ATTEMPTS" envDefault:"3"`
}

// Backend points at the recognition, directory and queue services.
type Backend struct {
	BaseURL        string        `env:"PATIENTFLOW_BACKEND_URL" envDefault:"http://127.0.0.1:9090"`
	RecognitionURL string        `env:"PATIENTFLOW_RECOGNITION_URL"`
	Timeout        time.Duration `env:"PATIENTFLOW_BACKEND_TIMEOUT" envDefault:"10s"`
}

// RecognitionBaseURL falls back to BaseURL when no dedicated URL is set.
func (b Backend) RecognitionBaseURL() string {
	if b.RecognitionURL != "" {
		return b.RecognitionURL
	}
	return b.BaseURL
}

// Store selects where the authenticated patient and token are kept.
type Store struct {
	Driver    string        `env:"PATIENTFLOW_STORE" envDefault:"memory"`
	Namespace string        `env:"PATIENTFLOW_STORE_NAMESPACE" envDefault:"patientflow"`
	TTL       time.Duration `env:"PATIENTFLOW_STORE_TTL" envDefault:"30m"`
	Redis     RedisConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Events selects the outcome event sink.
type Events struct {
	Driver  string   `env:"PATIENTFLOW_EVENTS" envDefault:"log"`
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"PATIENTFLOW_EVENTS_TOPIC" envDefault:"patientflow.verification"`

	ProduceTimeout time.Duration `env:"PATIENTFLOW_EVENTS_PRODUCE_TIMEOUT" envDefault:"5s"`
}

// Tracing enables OTLP export when an endpoint is set.
type Tracing struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"patientflow-kiosk"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the flow cannot run with.
func (c Config) Validate() error {
	var errs []error
	v := c.Verification
	if v.ScanInterval <= 0 {
		errs = append(errs, errors.New("scan interval must be positive"))
	}
	if v.CountdownTick <= 0 {
		errs = append(errs, errors.New("countdown tick must be positive"))
	}
	if v.BudgetSeconds <= 0 {
		errs = append(errs, errors.New("scan budget must be positive"))
	}
	if v.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if v.ConfidenceThreshold <= 0 || v.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence threshold %v outside (0, 1]", v.ConfidenceThreshold))
	}
	switch v.TokenPolicy {
	case TokenPolicyFailOpen, TokenPolicyFailClosed:
	default:
		errs = append(errs, fmt.Errorf("unknown token policy %q", v.TokenPolicy))
	}
	if v.IDInputLimit < 0 {
		errs = append(errs, errors.New("id input limit must not be negative"))
	}
	if v.IDInputLimit > 0 && v.IDInputWindow <= 0 {
		errs = append(errs, errors.New("id input window must be positive"))
	}
	if c.Camera.AcquireAttempts <= 0 {
		errs = append(errs, errors.New("camera acquire attempts must be positive"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend url is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Events.Driver {
	case "log":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for kafka events"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q", c.Events.Driver))
	}
	return errors.Join(errs...)
}
