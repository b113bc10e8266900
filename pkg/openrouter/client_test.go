package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	return New(Config{Endpoint: endpoint, APIKey: "test-key"}, zaptest.NewLogger(t))
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		// Stall until the client gives up.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	start := time.Now()
	res := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
		Timeout:  200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	// The call resolves within the configured wall-clock bound, with slack
	// for scheduling; it must never wait out the upstream.
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{
			"model": "test-model",
			"choices": [{"message": {"content": "{\"risk_level\":\"low\"}"}}]
		}`))
		assert.NoError(t, err)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	res := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
		Timeout:  time.Second,
	})

	require.True(t, res.Success)
	assert.Equal(t, "test-model", res.Model)
	assert.Contains(t, res.Content, "risk_level")
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream on fire", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	res := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
		Timeout:  time.Second,
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "502")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`{"model":"test-model","choices":[]}`))
		assert.NoError(t, err)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	res := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "test-model",
		Timeout:  time.Second,
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "empty completion response")
}

func TestCompleteNotConfigured(t *testing.T) {
	c := New(Config{}, zaptest.NewLogger(t))
	assert.False(t, c.Configured())

	res := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
}
