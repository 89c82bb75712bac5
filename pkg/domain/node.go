package domain

// NodeID identifies one stage of the evaluation workflow.
type NodeID string

// The closed set of workflow nodes, in topological order.
const (
	NodeGenerateTopic    NodeID = "generate_topic"
	NodeCollectEssay     NodeID = "collect_essay"
	NodeEvalClarity      NodeID = "eval_clarity"
	NodeEvalDepth        NodeID = "eval_depth"
	NodeEvalVocab        NodeID = "eval_vocab"
	NodeAggregateScore   NodeID = "aggregate_score"
	NodeGenerateFeedback NodeID = "generate_feedback"
)

// AllNodes lists every known node in display order.
var AllNodes = []NodeID{
	NodeGenerateTopic,
	NodeCollectEssay,
	NodeEvalClarity,
	NodeEvalDepth,
	NodeEvalVocab,
	NodeAggregateScore,
	NodeGenerateFeedback,
}

// EvaluationNodes are the nodes reset before every essay submission.
var EvaluationNodes = []NodeID{
	NodeEvalClarity,
	NodeEvalDepth,
	NodeEvalVocab,
	NodeAggregateScore,
	NodeGenerateFeedback,
}

var nodeLabels = map[NodeID]string{
	NodeGenerateTopic:    "Generate Topic",
	NodeCollectEssay:     "Collect Essay",
	NodeEvalClarity:      "Clarity Check",
	NodeEvalDepth:        "Depth Check",
	NodeEvalVocab:        "Vocab Check",
	NodeAggregateScore:   "Aggregate Score",
	NodeGenerateFeedback: "Generate Feedback",
}

// Known reports whether id belongs to the workflow graph.
func (id NodeID) Known() bool {
	_, ok := nodeLabels[id]
	return ok
}

// Label returns the human readable name of the node.
// Unknown nodes are labelled with their raw identifier.
func (id NodeID) Label() string {
	if l, ok := nodeLabels[id]; ok {
		return l
	}
	return string(id)
}

// NodeStatus is the visual status of a node.
type NodeStatus string

const (
	StatusIdle      NodeStatus = "idle"
	StatusActive    NodeStatus = "active"
	StatusCompleted NodeStatus = "completed"
	StatusError     NodeStatus = "error"
)

// NodeState is the per-node record read by renderers.
// Score is set only once the node has completed with a numeric result.
type NodeState struct {
	ID     NodeID     `json:"id"`
	Label  string     `json:"label"`
	Status NodeStatus `json:"status"`
	Score  *float64   `json:"score,omitempty"`
}

// NewNodeState creates an idle node without score.
func NewNodeState(id NodeID) NodeState {
	return NodeState{ID: id, Label: id.Label(), Status: StatusIdle}
}

// HasScore reports whether a score badge should be shown.
func (n NodeState) HasScore() bool {
	return n.Score != nil
}
