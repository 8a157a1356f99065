package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, TransportLocal, cfg.Transport)
	assert.Equal(t, "timeline-invalidations", cfg.KafkaTopic)
	assert.Equal(t, "timeline-projector", cfg.KafkaConsumerGroup)
	assert.Equal(t, 2*time.Second, cfg.Debounce)
	assert.Equal(t, 32, cfg.ChannelCapacity)
	assert.Equal(t, 6*time.Hour, cfg.SafetyRebuildInterval)
	assert.Empty(t, cfg.OTELEndpoint)
	assert.False(t, cfg.UsesKafka())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/booklog?sslmode=disable")
	t.Setenv("TIMELINE_TRANSPORT", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TIMELINE_DEBOUNCE", "500ms")
	t.Setenv("TIMELINE_SAFETY_REBUILD_INTERVAL", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
	assert.Zero(t, cfg.SafetyRebuildInterval)
	assert.True(t, cfg.UsesKafka())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageDriver:   StorageMemory,
			Transport:       TransportLocal,
			JWTSecret:       testSecret,
			ChannelCapacity: 32,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown storage", func(c *Config) { c.StorageDriver = "mongo" }, ErrUnknownStorage},
		{"postgres without dsn", func(c *Config) { c.StorageDriver = StoragePostgres }, ErrMissingDSN},
		{"unknown transport", func(c *Config) { c.Transport = "nats" }, ErrUnknownTransport},
		{"kafka without brokers", func(c *Config) { c.Transport = TransportKafka }, ErrMissingBrokers},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, ErrWeakSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg.ChannelCapacity = 0
	assert.Error(t, cfg.Validate())
}
