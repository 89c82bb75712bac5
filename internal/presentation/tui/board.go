package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/muesli/termenv"
	"github.com/spf13/cast"
)

var statusStyle = map[domain.NodeStatus]struct {
	icon  string
	color string
}{
	domain.StatusIdle:      {"○", "#6b7280"},
	domain.StatusActive:    {"◉", "#f59e0b"},
	domain.StatusCompleted: {"✔", "#10b981"},
	domain.StatusError:     {"✖", "#ef4444"},
}

// Board paints the workflow as a status board, one line per node.
// Frames identical to the previous one are skipped.
type Board struct {
	mu   sync.Mutex
	w    io.Writer
	out  *termenv.Output
	last string
}

var _ ports.GraphRenderer = (*Board)(nil)

// NewBoard writes frames to w. Colors follow the terminal profile of w;
// pass termenv.Ascii to disable them.
func NewBoard(w io.Writer, profile ...termenv.Profile) *Board {
	var opts []termenv.OutputOption
	if len(profile) > 0 {
		opts = append(opts, termenv.WithProfile(profile[0]))
	}
	return &Board{w: w, out: termenv.NewOutput(w, opts...)}
}

// Render implements ports.GraphRenderer.
func (b *Board) Render(snap domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame := b.frame(snap)
	if frame == b.last {
		return
	}
	b.last = frame
	fmt.Fprint(b.w, frame)
}

func (b *Board) frame(snap domain.Snapshot) string {
	var sb strings.Builder
	s := snap.Session

	header := fmt.Sprintf("[%s]", s.Status)
	if s.Topic != "" {
		header += fmt.Sprintf(" %q", s.Topic)
	}
	if s.Attempts > 0 {
		header += fmt.Sprintf(" attempt %d", s.Attempts)
	}
	fmt.Fprintf(&sb, "%s\n", b.out.String(header).Bold())

	for _, n := range snap.Nodes {
		st, ok := statusStyle[n.Status]
		if !ok {
			st = statusStyle[domain.StatusIdle]
		}
		line := fmt.Sprintf("  %s %-18s %-9s", st.icon, n.Label, n.Status)
		if n.HasScore() {
			line += " " + FormatScore(n.ID, *n.Score)
		}
		fmt.Fprintf(&sb, "%s\n", b.out.String(strings.TrimRight(line, " ")).Foreground(b.out.Color(st.color)))
	}
	return sb.String()
}

// FormatScore renders a score badge such as "4/5" or "12/15".
func FormatScore(id domain.NodeID, score float64) string {
	max := domain.MaxScore / 3
	if id == domain.NodeAggregateScore {
		max = domain.MaxScore
	}
	return fmt.Sprintf("%s/%d", cast.ToString(score), max)
}
