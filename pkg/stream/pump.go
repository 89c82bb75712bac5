package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/aretw0/essayflow/pkg/domain"
)

const defaultReadSize = 4096

// Handler receives the outcome of every framed record.
type Handler struct {
	// OnEvent receives each decoded event in stream order.
	OnEvent func(domain.StepEvent)
	// OnFailure receives records that failed to decode. Optional.
	OnFailure func(*DecodeError)
}

// Pump reads r until EOF, framing and decoding records as bytes arrive.
// Decode failures never stop the stream. Pump returns nil at EOF, the
// context error once ctx is done, or the wrapped read error.
func Pump(ctx context.Context, r io.Reader, h Handler) error {
	framer := NewFramer()
	buf := make([]byte, defaultReadSize)

	emit := func(records iter.Seq[string]) {
		for rec := range records {
			ev, err := Decode(rec)
			if err != nil {
				var decErr *DecodeError
				if errors.As(err, &decErr) && h.OnFailure != nil {
					h.OnFailure(decErr)
				}
				continue
			}
			if h.OnEvent != nil {
				h.OnEvent(ev)
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			emit(framer.Feed(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			emit(framer.Flush())
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read stream: %w", err)
		}
	}
}
