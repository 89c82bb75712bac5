package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func snapshot() domain.Snapshot {
	snap := domain.Snapshot{Session: domain.WorkflowSession{Topic: "Cities", Status: domain.MacroEvaluating, Attempts: 2}}
	for _, id := range domain.AllNodes {
		snap.Nodes = append(snap.Nodes, domain.NewNodeState(id))
	}
	return snap
}

func TestBoard_Frame(t *testing.T) {
	var buf bytes.Buffer
	b := NewBoard(&buf, termenv.Ascii)

	snap := snapshot()
	score := 4.0
	snap.Nodes[2].Status = domain.StatusCompleted
	snap.Nodes[2].Score = &score
	snap.Nodes[3].Status = domain.StatusActive
	b.Render(snap)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, `[evaluating] "Cities" attempt 2`, lines[0])
	assert.Len(t, lines, 1+len(domain.AllNodes))
	assert.Equal(t, "  ✔ Clarity Check      completed 4/5", lines[3])
	assert.Equal(t, "  ◉ Depth Check        active", lines[4])
	assert.Equal(t, "  ○ Generate Feedback  idle", lines[7])
}

func TestBoard_SkipsIdenticalFrames(t *testing.T) {
	var buf bytes.Buffer
	b := NewBoard(&buf, termenv.Ascii)

	b.Render(snapshot())
	n := buf.Len()
	b.Render(snapshot())
	assert.Equal(t, n, buf.Len())

	changed := snapshot()
	changed.Nodes[0].Status = domain.StatusActive
	b.Render(changed)
	assert.Greater(t, buf.Len(), n)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "12/15", FormatScore(domain.NodeAggregateScore, 12))
	assert.Equal(t, "3.5/5", FormatScore(domain.NodeEvalVocab, 3.5))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|__/")
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("- **Clarity (2/5):** shorter sentences")
	assert.NoError(t, err)
	assert.Contains(t, out, "shorter sentences")
}
