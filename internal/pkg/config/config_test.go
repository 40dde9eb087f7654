package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "STORE_DRIVER", "SQLITE_PATH", "DATABASE_URL", "STORE_TIMEOUT_MS",
	"REDIS_ADDR", "CUSTOMER_CACHE_TTL", "KAFKA_BROKERS", "ORDER_EVENTS_TOPIC",
	"OUTBOX_POLL_INTERVAL", "OTEL_SERVICE_NAME", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"TRACING_ENABLED", "LOG_LEVEL", "SEED_DEMO_DATA",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "./data/orders.db", cfg.SQLitePath)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CustomerCacheTTL)
	assert.Equal(t, "order.events", cfg.OrderEventsTopic)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.True(t, cfg.TracingEnabled)
	assert.False(t, cfg.SeedDemoData)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/orders")
	t.Setenv("STORE_TIMEOUT_MS", "750")
	t.Setenv("CUSTOMER_CACHE_TTL", "30s")
	t.Setenv("TRACING_ENABLED", "false")
	t.Setenv("SEED_DEMO_DATA", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 30*time.Second, cfg.CustomerCacheTTL)
	assert.False(t, cfg.TracingEnabled)
	assert.True(t, cfg.SeedDemoData)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_DRIVER": "postgres"},
		"unknown driver":       {"STORE_DRIVER": "mongo"},
		"bad timeout":          {"STORE_TIMEOUT_MS": "soon"},
		"zero timeout":         {"STORE_TIMEOUT_MS": "0"},
		"bad ttl":              {"CUSTOMER_CACHE_TTL": "5 minutes"},
		"negative interval":    {"OUTBOX_POLL_INTERVAL": "-1s"},
		"bad bool":             {"TRACING_ENABLED": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
