package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config хранит все конфигурации приложения
type Config struct {
	ServerPort       string        `yaml:"server_port" validate:"required,numeric"`
	DatabaseDriver   string        `yaml:"database_driver" validate:"required,oneof=postgres sqlite memory"`
	DatabaseDSN      string        `yaml:"database_dsn" validate:"required_unless=DatabaseDriver memory"`
	JwtSecret        string        `yaml:"jwt_secret" validate:"required,min=16"`
	Timezone         string        `yaml:"timezone" validate:"required"`
	RedisAddr        string        `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db" validate:"gte=0"`
	IngestRateLimit  int           `yaml:"ingest_rate_limit" validate:"gte=0"`
	RouteMaxPoints   int           `yaml:"route_max_points" validate:"gt=1"`
	LivePushInterval time.Duration `yaml:"live_push_interval" validate:"gte=1s"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogFormat        string        `yaml:"log_format" validate:"oneof=text json"`

	// Location is Timezone resolved by NewConfig.
	Location *time.Location `yaml:"-" validate:"-"`
}

func defaults() Config {
	return Config{
		ServerPort:       "6066",
		DatabaseDriver:   "sqlite",
		DatabaseDSN:      "file:./data.db?_time_format=sqlite&_pragma=foreign_keys(1)",
		Timezone:         "UTC",
		IngestRateLimit:  120,
		RouteMaxPoints:   300,
		LivePushInterval: 5 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// NewConfig собирает конфигурацию: значения по умолчанию, затем YAML из
// CONFIG_FILE, затем переменные окружения (в том числе из .env).
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JwtSecret = getEnv("JWT_SECRET", cfg.JwtSecret)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	if cfg.IngestRateLimit, err = getEnvInt("INGEST_RATE_LIMIT", cfg.IngestRateLimit); err != nil {
		return err
	}
	if cfg.RouteMaxPoints, err = getEnvInt("ROUTE_MAX_POINTS", cfg.RouteMaxPoints); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("LIVE_PUSH_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LIVE_PUSH_INTERVAL: %w", err)
		}
		cfg.LivePushInterval = d
	}
	return nil
}

// Validate checks field constraints and resolves Location.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
