package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string `env:"PORT" envDefault:"8080"`
	DBUrl          string `env:"DB_URL"`
	JWTSecret      string `env:"JWT_SECRET"`
	InternalAPIKey string `env:"INTERNAL_API_KEY"`
	AppEnv         string `env:"APP_ENV" envDefault:"production"`
	EnableDocs     bool   `env:"ENABLE_API_DOCS" envDefault:"false"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile        string `env:"LOG_FILE"`

	WSIdleTimeout    time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"60s"`
	WSAuthTimeout    time.Duration `env:"WS_AUTH_TIMEOUT" envDefault:"10s"`
	WSSendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"32"`
	WSRatePerSecond  float64       `env:"WS_RATE_PER_SECOND" envDefault:"10"`
	WSRateBurst      int           `env:"WS_RATE_BURST" envDefault:"20"`
	NotificationPage int           `env:"NOTIFICATION_PAGE_LIMIT" envDefault:"50"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.AppEnv = normalizeEnv(cfg.AppEnv)
	if cfg.NotificationPage <= 0 {
		cfg.NotificationPage = 50
	}
	return &cfg, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
