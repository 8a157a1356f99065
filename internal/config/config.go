package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	TransportLocal = "local"
	TransportKafka = "kafka"
)

const minSecretLength = 32

var (
	ErrUnknownStorage   = errors.New("unknown storage driver")
	ErrUnknownTransport = errors.New("unknown timeline transport")
	ErrMissingDSN       = errors.New("DATABASE_URL is required for postgres")
	ErrMissingBrokers   = errors.New("KAFKA_BROKERS is required for kafka transport")
	ErrWeakSecret       = fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"booklog-timeline"`
	LogMode     string `env:"LOG_MODE" envDefault:"dev"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"booklog.db"`

	Transport          string   `env:"TIMELINE_TRANSPORT" envDefault:"local"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic         string   `env:"KAFKA_TOPIC" envDefault:"timeline-invalidations"`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"timeline-projector"`

	Debounce              time.Duration `env:"TIMELINE_DEBOUNCE" envDefault:"2s"`
	ChannelCapacity       int           `env:"TIMELINE_CHANNEL_CAPACITY" envDefault:"32"`
	SafetyRebuildInterval time.Duration `env:"TIMELINE_SAFETY_REBUILD_INTERVAL" envDefault:"6h"`

	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTAccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`

	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.StorageDriver)
	}

	switch c.Transport {
	case TransportLocal:
	case TransportKafka:
		if len(c.KafkaBrokers) == 0 {
			return ErrMissingBrokers
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}

	if len(c.JWTSecret) < minSecretLength {
		return ErrWeakSecret
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("TIMELINE_CHANNEL_CAPACITY must be positive, got %d", c.ChannelCapacity)
	}
	if c.Debounce < 0 || c.SafetyRebuildInterval < 0 {
		return errors.New("timeline durations must not be negative")
	}
	return nil
}

// UsesKafka reports whether invalidation signals cross process boundaries.
func (c *Config) UsesKafka() bool {
	return c.Transport == TransportKafka
}
