package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/config"
	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/adapters/memory"
	"github.com/aretw0/essayflow/pkg/adapters/redis"
	"github.com/aretw0/essayflow/pkg/adapters/sim"
	"github.com/aretw0/essayflow/pkg/observability"
	"github.com/aretw0/essayflow/pkg/persistence/middleware"
	"github.com/aretw0/essayflow/pkg/ports"
)

// NewLogger builds the application logger from configuration.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// Persistence is the snapshot store selected by configuration.
type Persistence struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the store connection, if any.
func (p *Persistence) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// OpenPersistence connects the configured store. The redis driver is pinged
// so that a bad address fails fast. With an encryption key the store is
// wrapped so that snapshots are sealed at rest.
func OpenPersistence(ctx context.Context, cfg config.StoreConfig) (*Persistence, error) {
	p, err := openStore(ctx, cfg)
	if err != nil || p.Store == nil || cfg.EncryptionKey == "" {
		return p, err
	}
	mw, err := encryption(cfg)
	if err != nil {
		return nil, errors.Join(err, p.Close())
	}
	p.Store = middleware.Chain(p.Store, mw)
	return p, nil
}

func encryption(cfg config.StoreConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*Persistence, error) {
	switch cfg.Driver {
	case config.StoreNone:
		return &Persistence{}, nil
	case config.StoreMemory, "":
		return &Persistence{Store: memory.NewStore()}, nil
	case config.StoreRedis:
		opts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err := store.Ping(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err), store.Close())
		}
		return &Persistence{
			Store:  store,
			Locker: redis.NewLocker(store.Client(), store.Prefix()),
			close:  store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// EngineOptions translates configuration into engine options. Log hooks are
// always installed; p may be nil.
func EngineOptions(cfg config.Config, logger *slog.Logger, p *Persistence) []essayflow.Option {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := []essayflow.Option{
		essayflow.WithLogger(logger),
		essayflow.WithLifecycleHooks(observability.LogHooks(logger)),
		essayflow.WithPassThreshold(cfg.PassThreshold),
		essayflow.WithBackendTimeout(cfg.Backend.Timeout),
		essayflow.WithPacing(essayflow.Pacing{
			Hold:       cfg.Pacing.Hold,
			ModalDelay: cfg.Pacing.ModalDelay,
			TopicHold:  cfg.Pacing.TopicHold,
			Handoff:    cfg.Pacing.Handoff,
		}),
	}
	if cfg.Backend.Sim {
		opts = append(opts, essayflow.WithSimulator(sim.WithLatency(cfg.Backend.Latency)))
	}
	if p != nil && p.Store != nil {
		opts = append(opts, essayflow.WithStore(p.Store))
		if p.Locker != nil {
			opts = append(opts, essayflow.WithLocker(p.Locker))
		}
	}
	return opts
}
