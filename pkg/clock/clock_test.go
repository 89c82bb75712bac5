package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	ch := clk.After(800 * time.Millisecond)
	assert.Equal(t, 1, clk.Waiters())

	clk.Advance(799 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	clk.Advance(time.Millisecond)
	select {
	case at := <-ch:
		assert.Equal(t, start.Add(800*time.Millisecond), at)
	default:
		t.Fatal("did not fire at deadline")
	}
	assert.Equal(t, 0, clk.Waiters())
}

func TestManual_ZeroDurationFiresImmediately(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))
	select {
	case <-clk.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
	assert.Equal(t, 0, clk.Waiters())
}

func TestManual_BlockUntil(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))

	go func() {
		time.Sleep(10 * time.Millisecond)
		clk.After(time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntil(ctx, 1))

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, clk.BlockUntil(short, 2), context.DeadlineExceeded)
}
