package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/essayflow/pkg/adapters/memory"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/aretw0/essayflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, sessionID, snap)
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{Store: memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Save(ctx, id, domain.Snapshot{Session: domain.WorkflowSession{ID: id}}))
		}()
	}
	wg.Wait()

	assert.False(t, store.overlap.Load(), "saves of one session must be serialized")
}

func TestManager_UpdateIsReadModifyWrite(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	id := "counter"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Update(ctx, id, func(s *domain.Snapshot) error {
				s.Session.Attempts++
				return nil
			}))
		}()
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Session.Attempts)
	assert.Equal(t, id, snap.Session.ID)
}

func TestManager_UpdateAbortsOnError(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	boom := errors.New("boom")

	err := manager.Update(context.Background(), "x", func(*domain.Snapshot) error { return boom })
	require.ErrorIs(t, err, boom)

	_, err = manager.Load(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
	ttl      time.Duration
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, key)
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked = append(l.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(5*time.Second))

	require.NoError(t, manager.Save(context.Background(), "s1", domain.Snapshot{}))
	assert.Equal(t, []string{"s1"}, locker.locked)
	assert.Equal(t, []string{"s1"}, locker.unlocked)
	assert.Equal(t, 5*time.Second, locker.ttl)

	locker.err = errors.New("lock contention")
	err := manager.Save(context.Background(), "s1", domain.Snapshot{})
	assert.ErrorIs(t, err, locker.err)
}
