package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	sample := func(id string) domain.Snapshot {
		score := 12.0
		session := domain.NewWorkflowSession()
		session.ID = id
		session.Topic = "Urbanisation and its discontents"
		session.Status = domain.MacroFinished
		session.FinalScore = &score
		session.Attempts = 2

		nodes := make([]domain.NodeState, 0, len(domain.AllNodes))
		for _, n := range domain.AllNodes {
			nodes = append(nodes, domain.NewNodeState(n))
		}
		nodes[5].Status = domain.StatusCompleted
		nodes[5].Score = &score
		return domain.Snapshot{Session: session, Nodes: nodes, Edges: domain.Topology(), Epoch: 3}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := sample(sessionID)

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Session.ID, loaded.Session.ID)
		assert.Equal(t, snap.Session.Topic, loaded.Session.Topic)
		assert.Equal(t, domain.MacroFinished, loaded.Session.Status)
		require.NotNil(t, loaded.Session.FinalScore)
		assert.Equal(t, 12.0, *loaded.Session.FinalScore)
		assert.Equal(t, domain.Epoch(3), loaded.Epoch)

		agg, ok := loaded.Node(domain.NodeAggregateScore)
		require.True(t, ok)
		assert.Equal(t, domain.StatusCompleted, agg.Status)
		require.NotNil(t, agg.Score)
		assert.Equal(t, 12.0, *agg.Score)
	})

	t.Run("Load Isolation", func(t *testing.T) {
		snap := sample(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Nodes[0].Status = domain.StatusError

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIdle, again.Nodes[0].Status, "mutating a loaded snapshot must not affect the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, sample(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, sample(id1)))
		require.NoError(t, store.Save(ctx, id2, sample(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
