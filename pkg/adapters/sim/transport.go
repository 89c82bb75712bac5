package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/clock"
	"github.com/aretw0/essayflow/pkg/ports"
)

// Transport serves a Backend as a ports.Transport. Each stream is written
// through a pipe in randomly sized chunks, so records regularly straddle
// read boundaries the way they do over a real network.
type Transport struct {
	backend  *Backend
	latency  time.Duration
	maxChunk int
	clock    ports.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ports.Transport = (*Transport)(nil)

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLatency delays every record by d, imitating model inference time.
func WithLatency(d time.Duration) TransportOption {
	return func(t *Transport) { t.latency = d }
}

// WithMaxChunk bounds the size of each write. Values below 1 are ignored.
func WithMaxChunk(n int) TransportOption {
	return func(t *Transport) {
		if n > 0 {
			t.maxChunk = n
		}
	}
}

// WithSeed makes chunk sizes reproducible.
func WithSeed(seed uint64) TransportOption {
	return func(t *Transport) { t.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithTransportClock replaces the clock used for latency.
func WithTransportClock(c ports.Clock) TransportOption {
	return func(t *Transport) { t.clock = c }
}

// NewTransport wraps b.
func NewTransport(b *Backend, opts ...TransportOption) *Transport {
	t := &Transport{
		backend:  b,
		maxChunk: 32,
		clock:    clock.Real{},
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Backend returns the wrapped service.
func (t *Transport) Backend() *Backend { return t.backend }

// CreateSession implements ports.Transport.
func (t *Transport) CreateSession(ctx context.Context) (ports.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.SessionInfo{}, err
	}
	return t.backend.Start(), nil
}

// SubmitEssay implements ports.Transport.
func (t *Transport) SubmitEssay(ctx context.Context, sessionID, essay string) (io.ReadCloser, error) {
	records, err := t.backend.Evaluate(sessionID, essay)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(t.write(ctx, pw, records))
	}()
	return pr, nil
}

func (t *Transport) write(ctx context.Context, w io.Writer, records []backend.StepRecord) error {
	for _, rec := range records {
		if t.latency > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.clock.After(t.latency):
			}
		}
		line, err := EncodeRecord(rec)
		if err != nil {
			return err
		}
		for len(line) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := min(t.chunk(), len(line))
			if _, err := w.Write(line[:n]); err != nil {
				return err
			}
			line = line[n:]
		}
	}
	return nil
}

func (t *Transport) chunk() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return 1 + t.rng.IntN(t.maxChunk)
}

// EncodeRecord renders rec as one newline-terminated JSON line.
func EncodeRecord(rec backend.StepRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Node, err)
	}
	return buf.Bytes(), nil
}
