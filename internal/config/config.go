package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DeletionMode selects how the cascade engine removes entities. It is a
// process-wide policy: either everything is recoverable via restore, or
// nothing is.
type DeletionMode string

const (
	DeletionModeSoft DeletionMode = "soft"
	DeletionModeHard DeletionMode = "hard"
)

// Config holds runtime configuration for the enrolld services.
type Config struct {
	Addr           string        `env:"ADDR,default=:8080"`
	DBDSN          string        `env:"DB_DSN,required"`
	NATSURL        string        `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	DeletionMode   DeletionMode  `env:"DELETION_MODE,default=soft"`
	WorkerAddr     string        `env:"WORKER_ADDR,default=:8081"`
	WorkerDurable  string        `env:"WORKER_DURABLE,default=enrolld-deletions"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configuration values outside their closed sets.
func (c Config) Validate() error {
	switch c.DeletionMode {
	case DeletionModeSoft, DeletionModeHard:
		return nil
	default:
		return fmt.Errorf("invalid DELETION_MODE %q: must be soft or hard", c.DeletionMode)
	}
}
