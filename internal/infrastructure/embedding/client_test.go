package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/config"
)

func TestClient_EmbedStringsBatches(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-test", req.Model)
		batches = append(batches, req.Texts)

		resp := embedResponse{}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(batches)), 0.5})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, Model: "bge-test", BatchSize: 2})
	out, err := c.EmbedStrings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{1, 0.5}, out[0])
	assert.Equal(t, []float64{2, 0.5}, out[2])
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})
	_, err := c.EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status=502")

	out, err := c.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	empty := NewClient(&config.EmbeddingConfig{})
	_, err = empty.EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "endpoint is empty")
}

func TestClient_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL})
	_, err := c.EmbedStrings(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "count mismatch")
}

func TestNewEmbedder_Provider(t *testing.T) {
	e, err := NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: "http", Endpoint: "http://localhost"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, e)

	_, err = NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: "bogus"})
	assert.Error(t, err)

	_, err = NewEmbedder(context.Background(), &config.EmbeddingConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "endpoint is required")
}
