package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"mongo"`
	Gemini struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gemini"`
	Quiz struct {
		QuestionCount      int    `yaml:"questionCount"`
		TimerSeconds       int    `yaml:"timerSeconds"`
		RevealDelay        string `yaml:"revealDelay"`
		TimeoutRevealDelay string `yaml:"timeoutRevealDelay"`
		OpponentPoll       string `yaml:"opponentPoll"`
		DailyTTL           string `yaml:"dailyTTL"`
	} `yaml:"quiz"`
	Leaderboard struct {
		Limit int    `yaml:"limit"`
		TTL   string `yaml:"ttl"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path. A missing file yields the zero config so the
// service can run on defaults. GEMINI_API_KEY overrides gemini.apiKey.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	switch cfg.Store.Driver {
	case DriverMemory, DriverPostgres, DriverRedis, DriverMongo:
	default:
		return cfg, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v when positive, otherwise fallback.
func IntOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
