package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string

	NotificationAPIURL      string
	NotificationAPISecret   string
	NotificationAPITokenTTL time.Duration
	PersistTimeout          time.Duration

	DatabaseURL string
	RedisURL    string
	PresenceTTL time.Duration

	SendBufferSize int
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

func LoadConfig() (*Config, error) {
	var err error
	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		NotificationAPIURL:    strings.TrimSpace(os.Getenv("NOTIFICATION_API_URL")),
		NotificationAPISecret: os.Getenv("NOTIFICATION_API_SECRET"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:              strings.TrimSpace(os.Getenv("REDIS_URL")),
		AllowedOrigins:        splitList(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if cfg.NotificationAPITokenTTL, err = getDuration("NOTIFICATION_API_TOKEN_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.PersistTimeout, err = getDuration("PERSIST_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.PresenceTTL, err = getDuration("PRESENCE_TTL", "60s"); err != nil {
		return nil, err
	}
	if cfg.SendBufferSize, err = getInt("SEND_BUFFER_SIZE", 64); err != nil {
		return nil, err
	}

	// Validate
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT %q", cfg.ServerPort)
	}
	if cfg.SendBufferSize <= 0 {
		return nil, errors.New("SEND_BUFFER_SIZE must be positive")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (want json or console)", cfg.LogFormat)
	}

	return cfg, nil
}

// PersistenceMode reports which system of record notifications go to.
func (c *Config) PersistenceMode() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.NotificationAPIURL != "":
		return "api"
	default:
		return "disabled"
	}
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
