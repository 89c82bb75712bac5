package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two snapshots.
// It is serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// Nodes contains only nodes whose status or score changed.
	Nodes []NodeState `json:"nodes,omitempty"`

	// Session is the full session record, present only if any field changed.
	Session *WorkflowSession `json:"session,omitempty"`

	// Epoch is present when a new run started.
	Epoch *Epoch `json:"epoch,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{}

	if oldSnap == nil || oldSnap.Epoch != newSnap.Epoch {
		epoch := newSnap.Epoch
		diff.Epoch = &epoch
	}

	if oldSnap == nil || !sameSession(oldSnap.Session, newSnap.Session) {
		session := newSnap.Session
		diff.Session = &session
	}

	diff.Nodes = diffNodes(oldSnap, newSnap)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func sameSession(a, b WorkflowSession) bool {
	// UpdatedAt moves on every save and is not a visible change.
	a.UpdatedAt = b.UpdatedAt
	return reflect.DeepEqual(a, b)
}

func diffNodes(old, new *Snapshot) []NodeState {
	if old == nil {
		return append([]NodeState(nil), new.Nodes...)
	}

	prev := make(map[NodeID]NodeState, len(old.Nodes))
	for _, n := range old.Nodes {
		prev[n.ID] = n
	}

	var changed []NodeState
	for _, n := range new.Nodes {
		p, ok := prev[n.ID]
		if !ok || p.Status != n.Status || !sameScore(p.Score, n.Score) {
			changed = append(changed, n)
		}
	}
	return changed
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return len(d.Nodes) == 0 && d.Session == nil && d.Epoch == nil
}
