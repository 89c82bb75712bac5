package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Decode failure reasons.
const (
	ReasonInvalidJSON  = "invalid json"
	ReasonNotObject    = "not an object"
	ReasonTrailingData = "trailing data"
	ReasonMissingNode  = "missing node"
	ReasonBadEnvelope  = "bad envelope"
)

var errMissingNode = errors.New("node field is missing or empty")

// DecodeError reports a record that could not be turned into a StepEvent.
type DecodeError struct {
	Record string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %q: %s: %v", truncate(e.Record, 64), e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %q: %s", truncate(e.Record, 64), e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope accepts both {"node", "data": {...}} and the flat {"node", ...}.
type envelope struct {
	Node string         `mapstructure:"node"`
	Data map[string]any `mapstructure:"data"`
	Rest map[string]any `mapstructure:",remain"`
}

// Decode parses one record into a StepEvent. Numeric payload values are
// json.Number. Any failure is a *DecodeError.
func Decode(record string) (domain.StepEvent, error) {
	dec := json.NewDecoder(strings.NewReader(record))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonNotObject, Err: err}
		}
		return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonInvalidJSON, Err: err}
	}
	if raw == nil {
		return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonNotObject}
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonTrailingData, Err: err}
	}

	var env envelope
	if err := mapstructure.Decode(raw, &env); err != nil {
		return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonBadEnvelope, Err: err}
	}
	node := strings.TrimSpace(env.Node)
	if node == "" {
		return domain.StepEvent{}, &DecodeError{Record: record, Reason: ReasonMissingNode, Err: errMissingNode}
	}

	payload := make(map[string]any, len(env.Rest)+len(env.Data))
	maps.Copy(payload, env.Rest)
	maps.Copy(payload, env.Data)

	return domain.StepEvent{Node: domain.NodeID(node), Payload: payload}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
