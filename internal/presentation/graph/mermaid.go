package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/spf13/cast"
)

// GenerateMermaid produces a Mermaid flowchart of the workflow graph.
// It applies semantic shapes:
// - Topic generation: ((Circle))
// - Essay input: [/Parallelogram/]
// - Checks: [[Subroutine]]
// - Aggregate: {{Hexagon}}
// - Default: [Rectangle]
// When snap is not nil, node statuses are overlaid as classes and scores are
// appended to the labels.
func GenerateMermaid(snap *domain.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	states := make(map[domain.NodeID]domain.NodeState, len(domain.AllNodes))
	if snap != nil {
		for _, n := range snap.Nodes {
			states[n.ID] = n
		}
	}

	for _, id := range domain.AllNodes {
		opener, closer := shape(id)
		label := id.Label()
		if n, ok := states[id]; ok && n.HasScore() {
			label = fmt.Sprintf("%s <br/> %s/%d", label, cast.ToString(*n.Score), maxFor(id))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)
	}

	edges := domain.Topology()
	if snap != nil && len(snap.Edges) > 0 {
		edges = snap.Edges
	}
	for _, e := range edges {
		fmt.Fprintf(&sb, "    %s %s %s\n", e.Source, arrow(e), e.Target)
	}

	if snap == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Status Overlay\n")
	sb.WriteString("    classDef active fill:#fff3cd,stroke:#f0ad4e,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef completed fill:#d4edda,stroke:#28a745,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef error fill:#f8d7da,stroke:#dc3545,stroke-width:2px,color:#000;\n")
	for _, id := range domain.AllNodes {
		n, ok := states[id]
		if !ok || n.Status == domain.StatusIdle {
			continue
		}
		fmt.Fprintf(&sb, "    class %s %s;\n", id, n.Status)
	}
	return sb.String()
}

func shape(id domain.NodeID) (string, string) {
	switch id {
	case domain.NodeGenerateTopic:
		return "((", "))"
	case domain.NodeCollectEssay:
		return "[/", "/]"
	case domain.NodeEvalClarity, domain.NodeEvalDepth, domain.NodeEvalVocab:
		return "[[", "]]"
	case domain.NodeAggregateScore:
		return "{{", "}}"
	default:
		return "[", "]"
	}
}

func arrow(e domain.Edge) string {
	label := strings.ReplaceAll(e.Label, "\"", "'")
	switch {
	case e.Kind == domain.EdgeRetry && label != "":
		return fmt.Sprintf("-. \"%s\" .->", label)
	case e.Kind == domain.EdgeRetry:
		return "-.->"
	case label != "":
		return fmt.Sprintf("-- \"%s\" -->", label)
	default:
		return "-->"
	}
}

func maxFor(id domain.NodeID) int {
	if id == domain.NodeAggregateScore {
		return domain.MaxScore
	}
	return domain.MaxScore / 3
}
