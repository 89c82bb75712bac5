package sim

import (
	"testing"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodesOf(records []backend.StepRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Node
	}
	return out
}

func TestBackend_StartRotatesTopics(t *testing.T) {
	ids := 0
	b := NewBackend(
		WithTopics("a", "b"),
		WithIDGenerator(func() string { ids++; return string(rune('0' + ids)) }),
	)

	first, second, third := b.Start(), b.Start(), b.Start()

	assert.Equal(t, "a", first.Topic)
	assert.Equal(t, "b", second.Topic)
	assert.Equal(t, "a", third.Topic)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "3", third.ID)
}

func TestBackend_EvaluateFailing(t *testing.T) {
	b := NewBackend()
	info := b.Start()

	records, err := b.Evaluate(info.ID, "bad bad bad.")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"collect_essay", "eval_clarity", "eval_depth", "eval_vocab", "aggregate_score", "generate_feedback",
	}, nodesOf(records))
	assert.Nil(t, records[0].Data)
	assert.Equal(t, 4, records[4].Data[domain.FieldTotalScore])
	assert.Contains(t, records[5].Data[domain.FieldFeedback], "Score: 4/15")
	assert.Equal(t, 1, b.Revisions(info.ID))
}

func TestBackend_EvaluatePassing(t *testing.T) {
	b := NewBackend()
	info := b.Start()

	records, err := b.Evaluate(info.ID, strongEssay())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"collect_essay", "eval_clarity", "eval_depth", "eval_vocab", "aggregate_score",
	}, nodesOf(records))
}

func TestBackend_PassThreshold(t *testing.T) {
	b := NewBackend(WithPassThreshold(4))
	info := b.Start()

	records, err := b.Evaluate(info.ID, "bad bad bad.")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestBackend_UnknownThread(t *testing.T) {
	b := NewBackend()

	_, err := b.Evaluate("nope", "essay")
	assert.ErrorIs(t, err, ErrUnknownThread)
	assert.Zero(t, b.Revisions("nope"))
}
