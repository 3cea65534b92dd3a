package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("KAFKA_BATCH_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 25*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Server.PongWait)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Client.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.ReconnectMaxDelay)
	assert.Equal(t, 10*time.Millisecond, cfg.Kafka.BatchTimeout)

	level, err := cfg.Server.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RECONNECT_ATTEMPTS", "8")
	t.Setenv("ADMIN", "true")
	t.Setenv("WS_PING_INTERVAL", "not-a-duration")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BATCH_TIMEOUT", "5ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Client.ReconnectAttempts)
	assert.True(t, cfg.Client.Admin)
	assert.Equal(t, 25*time.Second, cfg.Server.PingInterval, "unparsable values fall back")
	assert.Equal(t, 5*time.Millisecond, cfg.Kafka.BatchTimeout)

	level, err := cfg.Server.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Server.PongWait = cfg.Server.PingInterval
	cfg.Client.ReconnectDelay = 0
	cfg.Server.LogLevel = "loud"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "WS_PONG_WAIT")
	assert.Contains(t, err.Error(), "RECONNECT_DELAY")
}
