package stream

import (
	"bytes"
	"iter"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Framer reassembles newline-delimited records from arbitrarily split chunks.
// Bytes are held until their record is complete, so a multi-byte rune split
// across two chunks is decoded intact. A Framer is not safe for concurrent use.
type Framer struct {
	buf []byte
	dec *encoding.Decoder
}

// NewFramer returns an empty framer.
func NewFramer() *Framer {
	return &Framer{dec: unicode.UTF8.NewDecoder()}
}

// Feed appends chunk and yields every record it completed, in order.
// Blank records are skipped. The split happens eagerly: records are
// consumed from the buffer even if the sequence is never ranged over.
func (f *Framer) Feed(chunk []byte) iter.Seq[string] {
	f.buf = append(f.buf, chunk...)

	var records []string
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		if rec, ok := f.record(f.buf[:i]); ok {
			records = append(records, rec)
		}
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return slices.Values(records)
}

// Flush yields the unterminated tail, if any, and empties the buffer.
// Call it once the stream reached EOF.
func (f *Framer) Flush() iter.Seq[string] {
	tail := f.buf
	f.buf = nil
	if rec, ok := f.record(tail); ok {
		return slices.Values([]string{rec})
	}
	return slices.Values([]string(nil))
}

// Pending reports the number of buffered bytes not yet framed.
func (f *Framer) Pending() int { return len(f.buf) }

func (f *Framer) record(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return "", false
	}
	out, err := f.dec.Bytes(line)
	if err != nil {
		// The UTF-8 decoder substitutes invalid input; an error here means
		// the transformer itself failed, fall back to the raw bytes.
		out = line
	}
	rec := string(out)
	if strings.TrimSpace(rec) == "" {
		return "", false
	}
	return rec, true
}
