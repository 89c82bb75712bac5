package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	tests := []struct {
		name    string
		record  string
		node    domain.NodeID
		payload map[string]any
	}{
		{
			name:    "envelope",
			record:  `{"node":"eval_clarity","data":{"clarity_score":4}}`,
			node:    domain.NodeEvalClarity,
			payload: map[string]any{"clarity_score": json.Number("4")},
		},
		{
			name:    "flat",
			record:  `{"node":"aggregate_score","total_score":12.5}`,
			node:    domain.NodeAggregateScore,
			payload: map[string]any{"total_score": json.Number("12.5")},
		},
		{
			name:    "envelope wins over flat",
			record:  `{"node":"eval_depth","depth_score":1,"data":{"depth_score":3}}`,
			node:    domain.NodeEvalDepth,
			payload: map[string]any{"depth_score": json.Number("3")},
		},
		{
			name:    "null data",
			record:  `{"node":"collect_essay","data":null}`,
			node:    domain.NodeCollectEssay,
			payload: map[string]any{},
		},
		{
			name:    "unknown node",
			record:  `{"node":"mystery_step","data":{"x":"y"}}`,
			node:    domain.NodeID("mystery_step"),
			payload: map[string]any{"x": "y"},
		},
		{
			name:    "string score kept verbatim",
			record:  `{"node":"eval_vocab","data":{"vocab_score":"5"}}`,
			node:    domain.NodeEvalVocab,
			payload: map[string]any{"vocab_score": "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.node, ev.Node)
			assert.Equal(t, tt.payload, ev.Payload)
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		record string
		reason string
	}{
		{"garbage", `not json`, ReasonInvalidJSON},
		{"truncated", `{"node":"eval_depth"`, ReasonInvalidJSON},
		{"array", `[1,2,3]`, ReasonNotObject},
		{"number", `42`, ReasonNotObject},
		{"null", `null`, ReasonNotObject},
		{"trailing", `{"node":"eval_depth"} {"node":"eval_vocab"}`, ReasonTrailingData},
		{"missing node", `{"data":{"clarity_score":4}}`, ReasonMissingNode},
		{"empty node", `{"node":"  "}`, ReasonMissingNode},
		{"boolean node", `{"node":true}`, ReasonBadEnvelope},
		{"object node", `{"node":{"id":"eval_depth"}}`, ReasonBadEnvelope},
		{"scalar data", `{"node":"eval_depth","data":"oops"}`, ReasonBadEnvelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(tt.record)
				require.Error(t, err)

				var decErr *DecodeError
				require.True(t, errors.As(err, &decErr))
				assert.Equal(t, tt.reason, decErr.Reason)
				assert.Equal(t, tt.record, decErr.Record)
				assert.NotEmpty(t, decErr.Error())
			})
		})
	}
}
