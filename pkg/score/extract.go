// Package score turns loosely typed payload values into numeric scores.
package score

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/spf13/cast"
)

// Extract returns the numeric value of v and whether one exists.
// Numbers of any Go kind and json.Number are accepted, as are strings that
// parse as a plain decimal after trimming. Everything else, including NaN,
// infinities, hex floats and digit separators, is absent. Extract never panics.
func Extract(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case json.Number:
		return parseDecimal(t.String())
	case string:
		return parseDecimal(strings.TrimSpace(t))
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return finite(cast.ToFloat64E(t))
	default:
		return 0, false
	}
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	return finite(strconv.ParseFloat(s, 64))
}

func finite(f float64, err error) (float64, bool) {
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var fields = map[domain.NodeID]string{
	domain.NodeEvalClarity:    domain.FieldClarityScore,
	domain.NodeEvalDepth:      domain.FieldDepthScore,
	domain.NodeEvalVocab:      domain.FieldVocabScore,
	domain.NodeAggregateScore: domain.FieldTotalScore,
}

// Field returns the payload field holding the score of node.
// Nodes without a score report false.
func Field(node domain.NodeID) (string, bool) {
	f, ok := fields[node]
	return f, ok
}

// FromEvent extracts the score of ev from the field its node reports on.
func FromEvent(ev domain.StepEvent) (float64, bool) {
	field, ok := Field(ev.Node)
	if !ok {
		return 0, false
	}
	return Extract(ev.Value(field))
}
