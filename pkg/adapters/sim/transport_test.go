package sim

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aretw0/essayflow/pkg/clock"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/score"
	"github.com/aretw0/essayflow/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r io.Reader) ([]domain.StepEvent, error) {
	t.Helper()
	var events []domain.StepEvent
	err := stream.Pump(context.Background(), r, stream.Handler{
		OnEvent: func(ev domain.StepEvent) { events = append(events, ev) },
		OnFailure: func(de *stream.DecodeError) {
			t.Errorf("unexpected decode failure: %v", de)
		},
	})
	return events, err
}

func TestTransport_StreamDecodes(t *testing.T) {
	tr := NewTransport(NewBackend(), WithSeed(7), WithMaxChunk(5))
	ctx := context.Background()

	info, err := tr.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.NotEmpty(t, info.Topic)

	body, err := tr.SubmitEssay(ctx, info.ID, "bad bad bad.")
	require.NoError(t, err)
	defer body.Close()

	events, err := collect(t, body)
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, domain.NodeCollectEssay, events[0].Node)
	assert.Empty(t, events[0].Payload)
	assert.Equal(t, domain.NodeGenerateFeedback, events[5].Node)
	total, ok := score.FromEvent(events[4])
	require.True(t, ok)
	assert.Equal(t, 4.0, total)
}

func TestTransport_UnknownThread(t *testing.T) {
	tr := NewTransport(NewBackend())

	_, err := tr.SubmitEssay(context.Background(), "nope", "essay")
	assert.ErrorIs(t, err, ErrUnknownThread)
}

func TestTransport_CreateSessionHonoursContext(t *testing.T) {
	tr := NewTransport(NewBackend())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.CreateSession(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransport_LatencyAndCancel(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	tr := NewTransport(NewBackend(), WithLatency(time.Second), WithTransportClock(clk))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info, err := tr.CreateSession(ctx)
	require.NoError(t, err)
	body, err := tr.SubmitEssay(ctx, info.ID, "bad bad bad.")
	require.NoError(t, err)
	defer body.Close()

	waitCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, clk.BlockUntil(waitCtx, 1))

	cancel()
	_, err = io.ReadAll(body)
	assert.ErrorIs(t, err, context.Canceled)
}
