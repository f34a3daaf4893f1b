package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port             string        `envconfig:"PORT" default:"8081"`
	JWTSecret        string        `envconfig:"JWT_SECRET" default:"dev-super-secret-change-me"`
	JWTExpiry        time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`
	DBPath           string        `envconfig:"DB_PATH" default:"campus-chat.db"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	MaxMessageLength int           `envconfig:"MAX_MESSAGE_LENGTH" default:"1000"`
	AllowedOrigins   []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}
	return cfg, nil
}

// SlogLevel maps the configured level string onto a slog level, defaulting
// to info on anything unrecognized.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
