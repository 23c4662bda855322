package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"SERVER_PORT", "NOTIFICATION_API_URL", "NOTIFICATION_API_SECRET", "NOTIFICATION_API_TOKEN_TTL",
	"PERSIST_TIMEOUT", "DATABASE_URL", "REDIS_URL", "PRESENCE_TTL", "SEND_BUFFER_SIZE",
	"ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 5*time.Minute, cfg.NotificationAPITokenTTL)
	assert.Equal(t, 60*time.Second, cfg.PresenceTTL)
	assert.Equal(t, 64, cfg.SendBufferSize)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "disabled", cfg.PersistenceMode())
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("NOTIFICATION_API_URL", "https://api.example/v1")
	t.Setenv("NOTIFICATION_API_SECRET", "s3cret")
	t.Setenv("PERSIST_TIMEOUT", "1500ms")
	t.Setenv("SEND_BUFFER_SIZE", "16")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example, ,http://localhost:3000")
	t.Setenv("LOG_FORMAT", "Console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 1500*time.Millisecond, cfg.PersistTimeout)
	assert.Equal(t, 16, cfg.SendBufferSize)
	assert.Equal(t, []string{"https://app.example", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "api", cfg.PersistenceMode())

	t.Setenv("DATABASE_URL", "postgres://localhost/relay")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.PersistenceMode())
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":    {"PERSIST_TIMEOUT", "soon"},
		"zero duration":   {"PRESENCE_TTL", "0s"},
		"bad ttl":         {"NOTIFICATION_API_TOKEN_TTL", "-1m"},
		"bad buffer":      {"SEND_BUFFER_SIZE", "lots"},
		"negative buffer": {"SEND_BUFFER_SIZE", "-4"},
		"bad port":        {"SERVER_PORT", "http"},
		"bad log format":  {"LOG_FORMAT", "xml"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
