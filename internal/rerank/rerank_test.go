package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "test-key", "rerank-english-v3.0", 5*time.Second, nil)
	require.NoError(t, err)
	return client
}

func TestRerank(t *testing.T) {
	var gotReq rerankRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := rerankResponse{Results: []Result{
			{Index: 2, RelevanceScore: 0.91},
			{Index: 0, RelevanceScore: 0.42},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	docs := []string{"doc a", "doc b", "doc c"}
	results, err := client.Rerank(context.Background(), "tax query", docs, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.91, results[0].RelevanceScore, 1e-9)

	assert.Equal(t, "rerank-english-v3.0", gotReq.Model)
	assert.Equal(t, "tax query", gotReq.Query)
	assert.Equal(t, docs, gotReq.Documents)
	assert.Equal(t, 2, gotReq.TopN)
}

func TestRerankEmptyDocuments(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected for empty documents")
	})

	results, err := client.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRerankTopNClamped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.TopN, "top_n should be clamped to document count")

		require.NoError(t, json.NewEncoder(w).Encode(rerankResponse{}))
	})

	_, err := client.Rerank(context.Background(), "query", []string{"a", "b"}, 5)
	require.NoError(t, err)
}

func TestRerankServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Rerank(context.Background(), "query", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestRerankIndexOutOfRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := rerankResponse{Results: []Result{{Index: 9, RelevanceScore: 0.5}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	_, err := client.Rerank(context.Background(), "query", []string{"a", "b"}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "key", "model", time.Second, nil)
	assert.Error(t, err)

	_, err = NewClient("https://api.cohere.com", "", "model", time.Second, nil)
	assert.Error(t, err)
}
