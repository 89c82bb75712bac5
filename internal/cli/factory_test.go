package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/config"
	"github.com/aretw0/essayflow/pkg/adapters/memory"
	"github.com/aretw0/essayflow/pkg/adapters/redis"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = NewLogger(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestOpenPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		p, err := OpenPersistence(ctx, config.StoreConfig{Driver: config.StoreNone})
		require.NoError(t, err)
		assert.Nil(t, p.Store)
		assert.NoError(t, p.Close())
	})

	t.Run("memory", func(t *testing.T) {
		p, err := OpenPersistence(ctx, config.StoreConfig{Driver: config.StoreMemory})
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, p.Store)
		assert.Nil(t, p.Locker)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		p, err := OpenPersistence(ctx, config.StoreConfig{
			Driver: config.StoreRedis,
			Redis:  config.RedisConfig{Addr: mr.Addr(), Prefix: "test:", TTL: time.Hour},
		})
		require.NoError(t, err)
		defer p.Close()
		assert.IsType(t, &redis.Store{}, p.Store)
		assert.NotNil(t, p.Locker)

		require.NoError(t, p.Store.Save(ctx, "t1", domain.Snapshot{Session: domain.WorkflowSession{ID: "t1"}}))
		assert.True(t, mr.Exists("test:t1"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()
		_, err = OpenPersistence(ctx, config.StoreConfig{
			Driver: config.StoreRedis,
			Redis:  config.RedisConfig{Addr: addr},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connect redis")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenPersistence(ctx, config.StoreConfig{Driver: "etcd"})
		assert.ErrorContains(t, err, `unknown store driver "etcd"`)
	})
}

func TestEngineOptions_SimulatedSessionIsStored(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Sim = true
	cfg.Pacing = config.PacingConfig{}
	logger, err := NewLogger(cfg.Log)
	require.NoError(t, err)
	p, err := OpenPersistence(context.Background(), cfg.Store)
	require.NoError(t, err)

	eng, err := essayflow.New(cfg.Backend.URL, EngineOptions(cfg, logger, p)...)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Start(ctx))
	require.NoError(t, eng.SubmitEssay(ctx, strings.Repeat("bad ", 3)))
	require.NoError(t, eng.WaitIdle(ctx))

	ids, err := eng.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, eng.Session().ID, ids[0])
}

func TestEngineOptions_RejectsThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Sim = true
	cfg.PassThreshold = 20
	_, err := essayflow.New("", EngineOptions(cfg, nil, nil)...)
	assert.Error(t, err)
}

func TestOpenPersistence_Encrypted(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, middleware.KeySize))

	p, err := OpenPersistence(ctx, config.StoreConfig{
		Driver:        config.StoreRedis,
		Redis:         config.RedisConfig{Addr: mr.Addr(), Prefix: "sealed:"},
		EncryptionKey: key,
	})
	require.NoError(t, err)
	defer p.Close()

	snap := domain.Snapshot{Session: domain.WorkflowSession{ID: "t1", Topic: "Water: the next global flashpoint"}}
	require.NoError(t, p.Store.Save(ctx, "t1", snap))

	raw, err := mr.Get("sealed:t1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "flashpoint")

	loaded, err := p.Store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, snap.Session.Topic, loaded.Session.Topic)

	_, err = OpenPersistence(ctx, config.StoreConfig{Driver: config.StoreMemory, EncryptionKey: "c2hvcnQ="})
	assert.ErrorContains(t, err, "encryption key")
}
