package sim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewBackend()))
	defer srv.Close()

	client, err := backend.New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	info, err := client.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)

	body, err := client.SubmitEssay(ctx, info.ID, strongEssay())
	require.NoError(t, err)
	defer body.Close()

	events, err := collect(t, body)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, domain.NodeAggregateScore, events[4].Node)
}

func TestHandler_UnknownThread(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewBackend()))
	defer srv.Close()

	client, err := backend.New(srv.URL)
	require.NoError(t, err)

	_, err = client.SubmitEssay(context.Background(), "nope", "essay")
	var se *backend.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestHandler_BadBody(t *testing.T) {
	h := NewHandler(NewBackend())
	req := httptest.NewRequest(http.MethodPost, backend.PathSubmit, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := NewHandler(NewBackend())
	req := httptest.NewRequest(http.MethodOptions, backend.PathSubmit, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
