package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/adapters/memory"
	"github.com/aretw0/essayflow/pkg/adapters/sim"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/projector"
	"github.com/aretw0/essayflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEngine records calls and returns preset errors.
type MockEngine struct {
	StartErr  error
	SubmitErr error
	RetryErr  error
	Essays    []string
	Snap      domain.Snapshot
}

func (m *MockEngine) Start(ctx context.Context) error { return m.StartErr }
func (m *MockEngine) SubmitEssay(ctx context.Context, essay string) error {
	m.Essays = append(m.Essays, essay)
	return m.SubmitErr
}
func (m *MockEngine) Retry(ctx context.Context) error { return m.RetryErr }
func (m *MockEngine) Snapshot() domain.Snapshot     { return m.Snap }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrInvalidTransition), http.StatusConflict},
		{domain.ErrNoSession, http.StatusConflict},
		{domain.ErrEmptyEssay, http.StatusBadRequest},
		{session.ErrEssayTooLarge, http.StatusBadRequest},
		{session.ErrInvalidUTF8, http.StatusBadRequest},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("create session: %w", &backend.StatusError{Op: "start", StatusCode: 500}), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestServer_Actions(t *testing.T) {
	eng := &MockEngine{Snap: domain.Snapshot{Session: domain.WorkflowSession{Topic: "t", Status: domain.MacroWaitingEssay}}}
	h := NewServer(eng, nil).Handler()

	rec := do(t, h, http.MethodPost, "/start", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.WorkflowSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "t", got.Topic)

	rec = do(t, h, http.MethodPost, "/essay", `{"essay":"hello"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"hello"}, eng.Essays)

	rec = do(t, h, http.MethodPost, "/essay", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eng.RetryErr = fmt.Errorf("retry: %w", domain.ErrInvalidTransition)
	rec = do(t, h, http.MethodPost, "/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid session transition")

	eng.SubmitErr = domain.ErrEmptyEssay
	rec = do(t, h, http.MethodPost, "/essay", `{"essay":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_FailuresLogUnderErrKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	eng := &MockEngine{StartErr: errors.New("backend down")}
	h := NewServer(eng, nil, WithLogger(logger)).Handler()

	do(t, h, http.MethodPost, "/essay", `not json`)
	do(t, h, http.MethodPost, "/start", "")
	eng.RetryErr = domain.ErrInvalidTransition
	do(t, h, http.MethodPost, "/retry", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Contains(t, rec, "err", line)
		assert.NotContains(t, rec, "error", line)
	}
}

func TestServer_InfoAndGraph(t *testing.T) {
	eng := &MockEngine{Snap: domain.Snapshot{Edges: domain.Topology()}}
	h := NewServer(eng, nil).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/info", "")
	assert.Contains(t, rec.Body.String(), `"app":"essayflow-http"`)

	rec = do(t, h, http.MethodGet, "/graph", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"edges"`)

	rec = do(t, h, http.MethodGet, "/graph/mermaid", "")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD"))

	rec = do(t, h, http.MethodOptions, "/start", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Sessions(t *testing.T) {
	store := memory.NewStore()
	snap := domain.Snapshot{Session: domain.WorkflowSession{ID: "abc", Topic: "t", Status: domain.MacroFinished}}
	require.NoError(t, store.Save(context.Background(), "abc", snap))
	h := NewServer(&MockEngine{}, nil, WithStore(store)).Handler()

	rec := do(t, h, http.MethodGet, "/sessions", "")
	assert.JSONEq(t, `["abc"]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/sessions/abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"finished"`)

	rec = do(t, h, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SessionsWithoutStore(t *testing.T) {
	h := NewServer(&MockEngine{}, nil).Handler()

	assert.JSONEq(t, `[]`, do(t, h, http.MethodGet, "/sessions", "").Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/x", "").Code)
}

func TestServer_Metrics(t *testing.T) {
	h := NewServer(&MockEngine{}, nil, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "essayflow_up 1")
	}))).Handler()

	assert.Equal(t, "essayflow_up 1", do(t, h, http.MethodGet, "/metrics", "").Body.String())
}

// sseReader reads events from a live /events response.
type sseReader struct {
	sc *bufio.Scanner
}

func (r *sseReader) next(t *testing.T) Message {
	t.Helper()
	var msg Message
	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			msg.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			msg.Data = []byte(strings.TrimPrefix(line, "data: "))
		case line == "" && msg.Event != "":
			return msg
		}
	}
	t.Fatalf("event stream ended: %v", r.sc.Err())
	return msg
}

func (r *sseReader) until(t *testing.T, event string) Message {
	t.Helper()
	for {
		if msg := r.next(t); msg.Event == event {
			return msg
		}
	}
}

func subscribe(t *testing.T, srv *httptest.Server) *sseReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return &sseReader{sc: bufio.NewScanner(resp.Body)}
}

func TestSubscribeEvents_SnapshotThenSurfaces(t *testing.T) {
	eng := &MockEngine{Snap: domain.Snapshot{Session: domain.WorkflowSession{Topic: "cities"}}}
	s := NewServer(eng, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	events := subscribe(t, srv)
	assert.Equal(t, "ping", events.next(t).Event)
	snap := events.next(t)
	assert.Equal(t, EventSnapshot, snap.Event)
	assert.Contains(t, string(snap.Data), `"topic":"cities"`)

	s.Streams.ShowFeedback("- be clearer", nil)
	msg := events.next(t)
	assert.Equal(t, EventFeedback, msg.Event)
	assert.JSONEq(t, `{"feedback":"- be clearer"}`, string(msg.Data))
}

func TestSubscribeEvents_EndToEnd(t *testing.T) {
	streams := NewStreamManager(nil)
	ctrl := session.NewController(
		sim.NewTransport(sim.NewBackend(sim.WithTopics("cities")), sim.WithSeed(1)),
		session.WithRenderer(streams),
		session.WithEssaySurface(streams),
		session.WithFeedbackSurface(streams),
		session.WithResultSurface(streams),
		session.WithTopicHold(0),
		session.WithHandoff(0),
		session.WithProjectorOptions(projector.WithHold(0), projector.WithModalDelay(0)),
	)
	defer ctrl.Close()

	srv := httptest.NewServer(NewServer(ctrl, streams).Handler())
	defer srv.Close()
	events := subscribe(t, srv)
	events.until(t, EventSnapshot)

	resp, err := srv.Client().Post(srv.URL+"/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	essay := events.until(t, EventEssay)
	assert.JSONEq(t, `{"topic":"cities"}`, string(essay.Data))

	resp, err = srv.Client().Post(srv.URL+"/essay", "application/json", strings.NewReader(`{"essay":"bad bad bad."}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	feedback := events.until(t, EventFeedback)
	assert.Contains(t, string(feedback.Data), "Score: 4/15")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ctrl.WaitIdle(ctx))

	snap := ctrl.Snapshot()
	agg, _ := snap.Node(domain.NodeAggregateScore)
	require.NotNil(t, agg.Score)
	assert.Equal(t, 4.0, *agg.Score)
	assert.Equal(t, domain.MacroEvaluating, snap.Session.Status)
}
