package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, backend.PathStart, r.URL.Path)
		_, _ = w.Write([]byte(`{"thread_id":"abc","topic":"Rivers"}`))
	}))
	defer srv.Close()

	c, err := backend.New(srv.URL + "/")
	require.NoError(t, err)

	info, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)
	assert.Equal(t, "Rivers", info.Topic)
}

func TestClient_CreateSession_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "llm offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := backend.New(srv.URL)
	require.NoError(t, err)

	_, err = c.CreateSession(context.Background())
	var statusErr *backend.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "llm offline", statusErr.Body)
}

func TestClient_CreateSession_MissingThreadID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"topic":"Rivers"}`))
	}))
	defer srv.Close()

	c, err := backend.New(srv.URL)
	require.NoError(t, err)
	_, err = c.CreateSession(context.Background())
	assert.Error(t, err)
}

func TestClient_SubmitEssay(t *testing.T) {
	const stream = `{"node":"eval_clarity","data":{"clarity_score":4}}` + "\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.PathSubmit, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req backend.SubmitRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc", req.ThreadID)
		assert.Equal(t, "My essay", req.Essay)

		w.Header().Set("Content-Type", backend.MediaTypeNDJSON)
		_, _ = w.Write([]byte(stream))
	}))
	defer srv.Close()

	c, err := backend.New(srv.URL)
	require.NoError(t, err)

	body, err := c.SubmitEssay(context.Background(), "abc", "My essay")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, stream, string(data))
}

func TestClient_SubmitEssay_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := backend.New(srv.URL)
	require.NoError(t, err)

	_, err = c.SubmitEssay(context.Background(), "abc", "x")
	var statusErr *backend.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := backend.New("ftp://example.com")
	assert.Error(t, err)

	c, err := backend.New("")
	require.NoError(t, err, "empty url falls back to the default")
	assert.NotNil(t, c)
}
