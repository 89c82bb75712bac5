package ports

import (
	"context"
	"io"
)

// SessionInfo is the backend response to a session creation request.
type SessionInfo struct {
	ID    string `json:"thread_id"`
	Topic string `json:"topic"`
}

// Transport is the driven port towards the remote evaluation workflow.
type Transport interface {
	// CreateSession asks the backend for a new session and its essay topic.
	CreateSession(ctx context.Context) (SessionInfo, error)

	// SubmitEssay sends the essay and returns the newline-delimited JSON stream
	// of step events. The caller must close the returned reader.
	SubmitEssay(ctx context.Context, sessionID, essay string) (io.ReadCloser, error)
}
