package domain

import "time"

// MacroStatus is the coarse state of a workflow session.
type MacroStatus string

const (
	MacroIdle            MacroStatus = "idle"
	MacroGeneratingTopic MacroStatus = "generating_topic"
	MacroWaitingEssay    MacroStatus = "waiting_essay"
	MacroEvaluating      MacroStatus = "evaluating"
	MacroFinished        MacroStatus = "finished"
)

// WorkflowSession is the controller-owned view of a run.
// ID is empty until the backend created the session.
type WorkflowSession struct {
	ID           string      `json:"id,omitempty"`
	Topic        string      `json:"topic"`
	Status       MacroStatus `json:"status"`
	FinalScore   *float64    `json:"final_score,omitempty"`
	FeedbackText string      `json:"feedback,omitempty"`
	Attempts     int         `json:"attempts"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewWorkflowSession returns an idle session.
func NewWorkflowSession() WorkflowSession {
	return WorkflowSession{Status: MacroIdle}
}

// CanStart reports whether a start action is accepted.
func (s WorkflowSession) CanStart() bool {
	return s.Status == MacroIdle || s.Status == MacroFinished
}

// Snapshot is the read model handed to renderers and stores.
type Snapshot struct {
	Session WorkflowSession `json:"session"`
	Nodes   []NodeState     `json:"nodes"`
	Edges   []Edge          `json:"edges"`
	Epoch   Epoch           `json:"epoch"`
}

// Node returns the state of id within the snapshot.
func (s Snapshot) Node(id NodeID) (NodeState, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeState{}, false
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Session.FinalScore != nil {
		v := *s.Session.FinalScore
		out.Session.FinalScore = &v
	}
	if s.Nodes != nil {
		out.Nodes = make([]NodeState, len(s.Nodes))
		for i, n := range s.Nodes {
			if n.Score != nil {
				v := *n.Score
				n.Score = &v
			}
			out.Nodes[i] = n
		}
	}
	if s.Edges != nil {
		out.Edges = append([]Edge(nil), s.Edges...)
	}
	return out
}
