package domain

// Payload field names emitted by the evaluation backend.
const (
	FieldClarityScore = "clarity_score"
	FieldDepthScore   = "depth_score"
	FieldVocabScore   = "vocab_score"
	FieldTotalScore   = "total_score"
	FieldFeedback     = "feedback"
	FieldTopic        = "topic"
)

// StepEvent is one decoded unit of progress reported for a single node.
// Numeric payload values are json.Number.
type StepEvent struct {
	Node    NodeID         `json:"node"`
	Payload map[string]any `json:"data,omitempty"`
}

// Value returns the payload field or nil.
func (e StepEvent) Value(field string) any {
	if e.Payload == nil {
		return nil
	}
	return e.Payload[field]
}

// Epoch tags a workflow run. Events carry the epoch of the stream that
// produced them and are discarded once the projector has moved past it.
type Epoch uint64
