// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Defaults
const (
	DefaultDatabaseURL    = "postgres://localhost:5432/focuswatch"
	DefaultPort           = "8080"
	DefaultReportInterval = time.Second
	DefaultCacheTTL       = time.Minute
)

// Env is the process configuration.
type Env struct {
	DatabaseURL string `validate:"required"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"gte=0,lte=15"`

	Port           string        `validate:"required,numeric"`
	ReportInterval time.Duration `validate:"gt=0"`
	CacheTTL       time.Duration `validate:"gt=0"`
}

// Load reads .env (if present) and the environment.
func Load() (Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds an Env from a lookup function.
func FromEnv(getenv func(string) string) (Env, error) {
	env := Env{
		DatabaseURL:    DatabaseURL(getenv),
		RedisAddress:   getenv("REDIS_ADDRESS"),
		RedisPassword:  getenv("REDIS_PASSWORD"),
		Port:           DefaultPort,
		ReportInterval: DefaultReportInterval,
		CacheTTL:       DefaultCacheTTL,
	}

	if v := getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Env{}, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		env.RedisDB = db
	}
	if v := getenv("PORT"); v != "" {
		env.Port = v
	}
	if v := getenv("REPORT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Env{}, fmt.Errorf("invalid REPORT_INTERVAL %q: %w", v, err)
		}
		env.ReportInterval = d
	}
	if v := getenv("FOCUS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Env{}, fmt.Errorf("invalid FOCUS_CACHE_TTL %q: %w", v, err)
		}
		env.CacheTTL = d
	}

	if err := validator.New().Struct(env); err != nil {
		return Env{}, fmt.Errorf("invalid environment: %w", err)
	}
	return env, nil
}

// DatabaseURL resolves the PostgreSQL connection string: DATABASE_URL wins, then the
// POSTGRES_* variables, then the local default.
func DatabaseURL(getenv func(string) string) string {
	if url := getenv("DATABASE_URL"); url != "" {
		return url
	}
	if host := getenv("POSTGRES_HOST"); host != "" {
		port := getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			getenv("POSTGRES_USER"), getenv("POSTGRES_PASSWORD"), host, port, getenv("POSTGRES_DB"))
	}
	return DefaultDatabaseURL
}
