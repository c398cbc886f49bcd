package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAUNDRY_CONFIG_FILE", "")
	t.Setenv("LAUNDRY_KAFKA_BROKERS", "")
	t.Setenv("LAUNDRY_HTTP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.Slots.SameDayPickupBufferMinutes)
	assert.Equal(t, time.Hour, cfg.StandardCancelLead())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LAUNDRY_CONFIG_FILE", "")
	t.Setenv("LAUNDRY_HTTP_ADDR", ":9090")
	t.Setenv("LAUNDRY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LAUNDRY_CANCEL_LEAD_MINUTES", "90")
	t.Setenv("LAUNDRY_REDIS_ENABLED", "false")
	t.Setenv("LAUNDRY_RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Minute, cfg.StandardCancelLead())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadYAMLOverlayExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DSN_HOST", "db.internal")
	path := filepath.Join(t.TempDir(), "laundry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  dsn: postgres://app@${TEST_DSN_HOST}/laundry
kafka:
  brokers: [broker-a:9092]
slots:
  standard_cancel_lead_minutes: 45
`), 0o600))
	t.Setenv("LAUNDRY_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db.internal/laundry", cfg.DB.DSN)
	assert.Equal(t, []string{"broker-a:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 45*time.Minute, cfg.StandardCancelLead())
	assert.Equal(t, 30, cfg.Slots.SameDayPickupBufferMinutes, "untouched keys keep env defaults")
}

func TestLoadRejectsBadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slots:\n  standard_cancel_lead_minutes: -5\n"), 0o600))
	t.Setenv("LAUNDRY_CONFIG_FILE", path)
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LAUNDRY_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}
