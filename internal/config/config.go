// Package config loads lessonloop's settings from an optional YAML file,
// a .env file and LESSONLOOP_* environment variables, in increasing order
// of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/lessonloop/internal/content"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
)

// State backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Evaluator kinds.
const (
	EvaluatorRules = "rules"
	EvaluatorLLM   = "llm"
)

// Config is the full process configuration.
type Config struct {
	Database  DatabaseConfig              `yaml:"database"`
	State     StateConfig                 `yaml:"state"`
	LLM       llm.Config                  `yaml:"llm"`
	Evaluator EvaluatorConfig             `yaml:"evaluator"`
	Session   session.Config              `yaml:"session"`
	Server    ServerConfig                `yaml:"server"`
	Workers   WorkersConfig               `yaml:"workers"`
	Expiry    ExpiryConfig                `yaml:"expiry"`
	Log       LogConfig                   `yaml:"log"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
}

// DatabaseConfig locates the SQLite database holding the event log (and
// sessions, with the sqlite backend).
type DatabaseConfig struct {
	// Path is empty for the default XDG data path.
	Path string `yaml:"path"`
}

// StateConfig selects where session snapshots live.
type StateConfig struct {
	Backend string            `yaml:"backend"`
	Redis   store.RedisConfig `yaml:"redis"`
}

// EvaluatorConfig selects the evaluation collaborator.
type EvaluatorConfig struct {
	Kind    string              `yaml:"kind"`
	LLM     evaluator.LLMConfig `yaml:"llm"`
	Explain content.Config      `yaml:"explain"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// WorkersConfig sizes the dispatch pool.
type WorkersConfig struct {
	Shards int `yaml:"shards"`
	Queue  int `yaml:"queue"`
}

// ExpiryConfig schedules the stale-session sweep.
type ExpiryConfig struct {
	// Schedule is a cron spec; "" disables the sweep.
	Schedule string `yaml:"schedule"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		State: StateConfig{
			Backend: BackendSQLite,
			Redis:   store.RedisConfig{Addr: "localhost:6379", Prefix: "lessonloop:"},
		},
		LLM: llm.DefaultConfig(),
		Evaluator: EvaluatorConfig{
			Kind:    EvaluatorRules,
			LLM:     evaluator.DefaultLLMConfig(),
			Explain: content.DefaultConfig(),
		},
		Session: session.DefaultConfig(),
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		Workers: WorkersConfig{Shards: 8, Queue: 64},
		Expiry:  ExpiryConfig{Schedule: "@every 1m"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: observability.TracingConfig{Exporter: "none"},
	}
}

// LoadDotEnv loads a .env file if present. Variables already set in the
// environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg)
	cfg.Session = cfg.Session.WithDefaults()
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg with any LESSONLOOP_* variables that are set.
func ApplyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("LESSONLOOP_DB", &cfg.Database.Path)

	str("LESSONLOOP_STATE_BACKEND", &cfg.State.Backend)
	str("LESSONLOOP_REDIS_ADDR", &cfg.State.Redis.Addr)
	str("LESSONLOOP_REDIS_PASSWORD", &cfg.State.Redis.Password)
	num("LESSONLOOP_REDIS_DB", &cfg.State.Redis.DB)
	str("LESSONLOOP_REDIS_PREFIX", &cfg.State.Redis.Prefix)

	llm.ApplyEnv(&cfg.LLM)
	str("LESSONLOOP_EVALUATOR", &cfg.Evaluator.Kind)

	num("LESSONLOOP_MAX_ATTEMPTS", &cfg.Session.MaxAttempts)
	if v := os.Getenv("LESSONLOOP_PASS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Session.PassThreshold = f
		}
	}
	dur("LESSONLOOP_RESPONSE_TIMEOUT", &cfg.Session.ResponseTimeout)
	flag("LESSONLOOP_NO_TIMEOUT", &cfg.Session.NoTimeout)
	flag("LESSONLOOP_LEGACY_SCAN", &cfg.Session.LegacyScan)

	str("LESSONLOOP_ADDR", &cfg.Server.Addr)
	num("LESSONLOOP_WORKERS", &cfg.Workers.Shards)
	str("LESSONLOOP_EXPIRY_SCHEDULE", &cfg.Expiry.Schedule)

	str("LESSONLOOP_LOG_LEVEL", &cfg.Log.Level)
	str("LESSONLOOP_LOG_FORMAT", &cfg.Log.Format)

	str("LESSONLOOP_TRACE_EXPORTER", &cfg.Tracing.Exporter)
	str("LESSONLOOP_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.State.Backend {
	case BackendSQLite:
	case BackendRedis:
		if c.State.Redis.Addr == "" {
			return fmt.Errorf("state.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	switch c.Evaluator.Kind {
	case EvaluatorRules:
	case EvaluatorLLM:
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	default:
		return fmt.Errorf("unknown evaluator %q", c.Evaluator.Kind)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Workers.Shards < 1 {
		return fmt.Errorf("workers.shards must be at least 1, got %d", c.Workers.Shards)
	}
	if c.Expiry.Schedule != "" {
		if _, err := cron.ParseStandard(c.Expiry.Schedule); err != nil {
			return fmt.Errorf("expiry.schedule: %w", err)
		}
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter)
	}
	return nil
}
