package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/docretrieval/internal/domain/entities"
)

// fakeProvider serves an OpenAI-shaped /embeddings endpoint whose vectors
// encode the input's batch position, so order can be asserted end to end.
func fakeProvider(t *testing.T, failures *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && failures.Add(-1) >= 0 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(text)), 1, 0}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    baseURL,
		Model:      "test-model",
		BatchSize:  2,
		MaxRetries: retries,
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	srv := fakeProvider(t, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbedBatch_RetriesTransientFailure(t *testing.T) {
	var failures atomic.Int32
	failures.Store(1)
	srv := fakeProvider(t, &failures)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	vectors, err := c.EmbedBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
}

func TestEmbedBatch_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	_, err := c.EmbedBatch(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrEmbeddingUnavailable))
}

func TestEmbedBatch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.EmbedBatch(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, entities.ErrEmbeddingUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedBatch_Empty(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", 0)
	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbed_Single(t *testing.T) {
	srv := fakeProvider(t, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	vec, err := c.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}
