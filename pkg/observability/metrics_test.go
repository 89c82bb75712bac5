package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	score := 4.0
	hooks.OnNodeActivate(ctx, &domain.NodeEvent{NodeID: domain.NodeEvalDepth, Known: true})
	hooks.OnNodeResolve(ctx, &domain.NodeEvent{
		NodeID: domain.NodeEvalDepth, Known: true, Status: domain.StatusCompleted,
		Score: &score, Elapsed: 800 * time.Millisecond,
	})
	hooks.OnNodeActivate(ctx, &domain.NodeEvent{NodeID: "summarize"})
	hooks.OnDecodeFailure(ctx, &domain.DecodeFailureEvent{Reason: "invalid_json"})
	hooks.OnEventDiscarded(ctx, &domain.DiscardEvent{})
	hooks.OnTransition(ctx, &domain.TransitionEvent{From: domain.MacroIdle, To: domain.MacroGeneratingTopic})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("eval_depth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues(unknownNode)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("eval_depth", "completed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.scores.WithLabelValues("eval_depth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeFails.WithLabelValues("invalid_json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("idle", "generating_topic")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.hold))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatText)
	hooks := domain.ComposeHooks(LogHooks(logger), domain.LifecycleHooks{})
	ctx := context.Background()

	hooks.OnTransition(ctx, &domain.TransitionEvent{SessionID: "s1", From: domain.MacroWaitingEssay, To: domain.MacroEvaluating})
	hooks.OnDecodeFailure(ctx, &domain.DecodeFailureEvent{Reason: "not_object", Record: "[1]"})

	out := buf.String()
	assert.Contains(t, out, "msg=transition session_id=s1 from=waiting_essay to=evaluating")
	assert.Contains(t, out, "level=WARN msg=decode_failure reason=not_object")
}
