// Package config reads runtime settings from .env files and the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvAddr        = "TUNECOACH_ADDR"
	EnvDB          = "TUNECOACH_DB"
	EnvScorer      = "TUNECOACH_SCORER"
	EnvWorkers     = "TUNECOACH_WORKERS"
	EnvTimeout     = "TUNECOACH_TIMEOUT"
	EnvMaxInFlight = "TUNECOACH_MAX_INFLIGHT"
	EnvLogLevel    = "TUNECOACH_LOG_LEVEL"
)

// Config holds host settings. The engine itself needs only Workers and Scorer.
type Config struct {
	Addr        string        // HTTP listen address
	DBPath      string        // SQLite file for practice sessions; empty keeps them in memory
	ScorerPath  string        // optional LinearScorer weights
	Workers     int           // parallel chunk analyses per request
	Timeout     time.Duration // wall-clock budget per request
	MaxInFlight int64         // concurrent analysis requests
	LogLevel    string
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Addr:        ":5000",
		DBPath:      "",
		Workers:     runtime.GOMAXPROCS(0),
		Timeout:     30 * time.Second,
		MaxInFlight: 16,
		LogLevel:    "info",
	}
}

// Load reads the given .env files (or ./.env), then the environment.
// Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv builds a Config from the environment over Default
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.Addr = GetEnv(EnvAddr, cfg.Addr)
	cfg.DBPath = GetEnv(EnvDB, cfg.DBPath)
	cfg.ScorerPath = GetEnv(EnvScorer, cfg.ScorerPath)
	cfg.LogLevel = GetEnv(EnvLogLevel, cfg.LogLevel)

	var err error
	if cfg.Workers, err = intEnv(EnvWorkers, cfg.Workers); err != nil {
		return Config{}, err
	}
	maxInFlight, err := intEnv(EnvMaxInFlight, int(cfg.MaxInFlight))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxInFlight = int64(maxInFlight)

	if v := os.Getenv(EnvTimeout); v != "" {
		if cfg.Timeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("invalid %s value '%s': %w", EnvTimeout, v, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the host cannot run with
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.MaxInFlight < 1:
		return fmt.Errorf("max in-flight must be positive, got %d", c.MaxInFlight)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// GetEnv returns the variable's value, or fallback when it is unset or empty
func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value '%s': %w", key, v, err)
	}
	return n, nil
}
