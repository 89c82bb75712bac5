package ports

import (
	"context"

	"github.com/aretw0/essayflow/pkg/domain"
)

// GraphRenderer paints the graph from a snapshot. It is the sole reader of
// node state; the engine never reads back from it.
type GraphRenderer interface {
	Render(snapshot domain.Snapshot)
}

// RendererFunc adapts a function to GraphRenderer.
type RendererFunc func(domain.Snapshot)

// Render calls f(snapshot).
func (f RendererFunc) Render(snapshot domain.Snapshot) { f(snapshot) }

// SubmitFunc hands the collected essay back to the engine.
type SubmitFunc func(ctx context.Context, essay string) error

// RetryFunc loops the workflow back to essay collection.
type RetryFunc func(ctx context.Context) error

// StartFunc starts a fresh session.
type StartFunc func(ctx context.Context) error

// Surfaces are invoked from the engine's own goroutines and must return
// promptly; user interaction happens asynchronously through the callback.

// EssaySurface collects free-text input for a topic.
type EssaySurface interface {
	ShowEssayInput(topic string, submit SubmitFunc)
}

// FeedbackSurface displays feedback and offers a retry.
type FeedbackSurface interface {
	ShowFeedback(feedback string, retry RetryFunc)
}

// ResultSurface displays the final score of a passed evaluation.
type ResultSurface interface {
	ShowResult(score float64, startNew StartFunc)
}
