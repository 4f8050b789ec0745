// Package config loads process configuration: a local .env file first, then
// the process environment decoded into typed structs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Secrets are the credentials the process needs. They are never logged.
type Secrets struct {
	MongoDBConnectionString string `env:"MONGODB_CONNECTION_STRING"`
	OTLPEndpoint            string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Store configures the document store and its lazy initialisation.
type Store struct {
	Backend        string        `env:"STORE_BACKEND,default=mongo"`
	Database       string        `env:"STORE_DATABASE,default=rocketpy"`
	BadgerPath     string        `env:"BADGER_PATH,default=data/badger"`
	ConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT,default=30s"`
	IdleTimeout    time.Duration `env:"STORE_IDLE_TIMEOUT,default=5m"`
	InitAttempts   int           `env:"STORE_INIT_ATTEMPTS,default=5"`
	InitBackoff    time.Duration `env:"STORE_INIT_BACKOFF,default=2s"`
}

// HTTP configures the listeners.
type HTTP struct {
	Addr        string `env:"HTTP_ADDR,default=:3000"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9090"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled     bool    `env:"TRACING_ENABLED,default=false"`
	Exporter    string  `env:"TRACING_EXPORTER,default=stdout"`
	ServiceName string  `env:"TRACING_SERVICE_NAME,default=rocketflight-api"`
	SampleRatio float64 `env:"TRACING_SAMPLE_RATIO,default=1"`
}

// Log configures the process logger.
type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// Config is the full process configuration.
type Config struct {
	Secrets Secrets
	Store   Store
	HTTP    HTTP
	Tracing Tracing
	Log     Log
}

// Load reads envFile when it exists, without overriding variables already
// set, then decodes the environment. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendMongo:
		if c.Secrets.MongoDBConnectionString == "" {
			return errors.New("MONGODB_CONNECTION_STRING is required for the mongo store backend")
		}
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.InitAttempts < 1 {
		return fmt.Errorf("STORE_INIT_ATTEMPTS must be at least 1, got %d", c.Store.InitAttempts)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}
