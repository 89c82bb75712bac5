// Package backend is the HTTP transport towards the essay evaluation service.
//
// The service exposes two endpoints:
//
//	POST /start         -> {"thread_id": "...", "topic": "..."}
//	POST /submit-essay  <- {"thread_id": "...", "essay_content": "..."}
//	                    -> application/x-ndjson stream of {"node": "...", "data": {...}}
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/ports"
)

const (
	// DefaultBaseURL is where the reference service listens.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds session creation. Streams are bounded by their context only.
	DefaultTimeout = 30 * time.Second

	// MediaTypeNDJSON is the content type of the step stream.
	MediaTypeNDJSON = "application/x-ndjson"

	PathStart  = "/start"
	PathSubmit = "/submit-essay"

	maxErrorBody = 512
)

// SubmitRequest is the body of POST /submit-essay.
type SubmitRequest struct {
	ThreadID string `json:"thread_id"`
	Essay    string `json:"essay_content"`
}

// StepRecord is one line of the step stream as emitted by the service.
type StepRecord struct {
	Node string         `json:"node"`
	Data map[string]any `json:"data"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client implements ports.Transport over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Transport = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout bounds session creation requests.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession calls POST /start.
func (c *Client) CreateSession(ctx context.Context) (ports.SessionInfo, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathStart), nil)
	if err != nil {
		return ports.SessionInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.SessionInfo{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("start session", resp); err != nil {
		return ports.SessionInfo{}, err
	}

	var info ports.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ports.SessionInfo{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if info.ID == "" {
		return ports.SessionInfo{}, fmt.Errorf("start session: response carries no thread_id")
	}
	c.logger.Debug("backend session created", "session_id", info.ID)
	return info, nil
}

// SubmitEssay calls POST /submit-essay and returns the open NDJSON stream.
// The stream lives as long as ctx; the caller must close it.
func (c *Client) SubmitEssay(ctx context.Context, sessionID, essay string) (io.ReadCloser, error) {
	body, err := json.Marshal(SubmitRequest{ThreadID: sessionID, Essay: essay})
	if err != nil {
		return nil, fmt.Errorf("failed to encode essay: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathSubmit), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", MediaTypeNDJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if err := checkStatus("submit essay", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	c.logger.Debug("evaluation stream open", "session_id", sessionID, "content_type", resp.Header.Get("Content-Type"))
	return resp.Body, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
