package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "POSTGRES_DSN", "POSTGRES_MAX_CONNS", "STORE_DRIVER", "REDIS_ADDR", "KAFKA_BROKERS",
		"SERVICE_NAME", "LOG_LEVEL", "PENDING_TTL", "SWEEP_INTERVAL", "LOCK_TTL",
		"PAYMENTS_GROUP", "PAYMENTS_WORKERS", "OTEL_ENDPOINT", "OTEL_AUTH_HEADER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 8, cfg.PaymentsWorkers)
	assert.Equal(t, int32(8), cfg.PostgresMax)
	assert.Empty(t, cfg.OtelEndpoint)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PENDING_TTL", "30m")
	t.Setenv("PAYMENTS_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
	assert.Equal(t, 3, cfg.PaymentsWorkers)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":     "cassandra",
		"PENDING_TTL":      "tomorrow",
		"LOCK_TTL":         "-1s",
		"PAYMENTS_WORKERS": "0",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
