// Package config loads essayflow settings from defaults, an optional YAML
// file and ESSAYFLOW_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/adapters/redis"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/persistence/middleware"
	"github.com/aretw0/essayflow/pkg/projector"
	"github.com/aretw0/essayflow/pkg/session"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ESSAYFLOW_BACKEND_URL.
const EnvPrefix = "ESSAYFLOW"

// Store drivers.
const (
	StoreNone   = "none"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	Backend       BackendConfig `yaml:"backend" envconfig:"BACKEND"`
	Pacing        PacingConfig  `yaml:"pacing" envconfig:"PACING"`
	PassThreshold float64       `yaml:"pass_threshold" envconfig:"PASS_THRESHOLD"`
	Store         StoreConfig   `yaml:"store" envconfig:"STORE"`
	Log           LogConfig     `yaml:"log" envconfig:"LOG"`
	HTTP          HTTPConfig    `yaml:"http" envconfig:"HTTP"`
}

// BackendConfig selects the evaluation service.
type BackendConfig struct {
	URL     string        `yaml:"url" envconfig:"URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	// Sim replaces the remote service with the in-process simulator.
	Sim bool `yaml:"sim" envconfig:"SIM"`
	// Latency delays each simulated record.
	Latency time.Duration `yaml:"latency" envconfig:"LATENCY"`
	// Addr is where `essayflow backend` listens.
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// PacingConfig holds the perceptual delays of the graph.
type PacingConfig struct {
	Hold       time.Duration `yaml:"hold" envconfig:"HOLD"`
	ModalDelay time.Duration `yaml:"modal_delay" envconfig:"MODAL_DELAY"`
	TopicHold  time.Duration `yaml:"topic_hold" envconfig:"TOPIC_HOLD"`
	Handoff    time.Duration `yaml:"handoff" envconfig:"HANDOFF"`
}

// StoreConfig selects where session snapshots are kept.
type StoreConfig struct {
	Driver string      `yaml:"driver" envconfig:"DRIVER"`
	Redis  RedisConfig `yaml:"redis" envconfig:"REDIS"`
	// EncryptionKey seals stored snapshots when set (base64, 32 bytes).
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
	// FallbackKeys still decrypt snapshots sealed before a key rotation.
	FallbackKeys []string `yaml:"fallback_keys" envconfig:"FALLBACK_KEYS"`
}

// RedisConfig configures the redis store and locker.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	Prefix   string        `yaml:"prefix" envconfig:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// HTTPConfig configures `essayflow serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:     backend.DefaultBaseURL,
			Timeout: backend.DefaultTimeout,
			Addr:    ":8000",
		},
		Pacing: PacingConfig{
			Hold:       projector.DefaultHold,
			ModalDelay: projector.DefaultModalDelay,
			TopicHold:  session.DefaultTopicHold,
			Handoff:    session.DefaultHandoff,
		},
		PassThreshold: domain.DefaultPassThreshold,
		Store: StoreConfig{
			Driver: StoreMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: redis.DefaultPrefix,
			},
		},
		Log:  LogConfig{Level: "info", Format: string(logging.FormatText)},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if !c.Backend.Sim && c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required unless backend.sim is set"))
	}
	if c.PassThreshold <= 0 || c.PassThreshold > domain.MaxScore {
		errs = append(errs, fmt.Errorf("pass_threshold must be in (0, %d], got %v", domain.MaxScore, c.PassThreshold))
	}
	for name, d := range map[string]time.Duration{
		"backend.timeout":    c.Backend.Timeout,
		"backend.latency":    c.Backend.Latency,
		"pacing.hold":        c.Pacing.Hold,
		"pacing.modal_delay": c.Pacing.ModalDelay,
		"pacing.topic_hold":  c.Pacing.TopicHold,
		"pacing.handoff":     c.Pacing.Handoff,
		"store.redis.ttl":    c.Store.Redis.TTL,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	switch c.Store.Driver {
	case StoreNone, StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("store.encryption_key: %w", err))
		}
	}
	for i, k := range c.Store.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("store.fallback_keys[%d]: %w", i, err))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
