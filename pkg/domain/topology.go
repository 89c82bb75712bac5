package domain

// EdgeKind distinguishes the normal flow from the conditional branches.
type EdgeKind string

const (
	EdgeFlow  EdgeKind = "flow"
	EdgeFail  EdgeKind = "fail"
	EdgeRetry EdgeKind = "retry"
)

// Edge is a static connection between two nodes.
type Edge struct {
	ID     string   `json:"id"`
	Source NodeID   `json:"source"`
	Target NodeID   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Label  string   `json:"label,omitempty"`
}

// Scoring constants of the evaluation workflow.
const (
	// MaxScore is the top of the aggregate scale (three checks of 5 points).
	MaxScore = 15
	// DefaultPassThreshold is the aggregate total that ends the workflow.
	DefaultPassThreshold = 10
)

// Topology returns the static edge set of the workflow graph.
// The retry edge is logical: it is realized by the session controller,
// never by the event stream.
func Topology() []Edge {
	return []Edge{
		{ID: "e1-2", Source: NodeGenerateTopic, Target: NodeCollectEssay, Kind: EdgeFlow},
		{ID: "e2-3", Source: NodeCollectEssay, Target: NodeEvalClarity, Kind: EdgeFlow},
		{ID: "e2-4", Source: NodeCollectEssay, Target: NodeEvalDepth, Kind: EdgeFlow},
		{ID: "e2-5", Source: NodeCollectEssay, Target: NodeEvalVocab, Kind: EdgeFlow},
		{ID: "e3-6", Source: NodeEvalClarity, Target: NodeAggregateScore, Kind: EdgeFlow},
		{ID: "e4-6", Source: NodeEvalDepth, Target: NodeAggregateScore, Kind: EdgeFlow},
		{ID: "e5-6", Source: NodeEvalVocab, Target: NodeAggregateScore, Kind: EdgeFlow},
		{ID: "e6-7", Source: NodeAggregateScore, Target: NodeGenerateFeedback, Kind: EdgeFail, Label: "Needs Improvement"},
		{ID: "e7-2", Source: NodeGenerateFeedback, Target: NodeCollectEssay, Kind: EdgeRetry, Label: "Retry"},
	}
}
