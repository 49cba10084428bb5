package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
	assert.Equal(t, 100, embedder.MaxBatchSize())
}

func TestEmbedder_BatchEmbedKeepsInputOrder(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &request))

		// 逆順で返しても index で並べ直される
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	}))
	defer server.Close()

	embedder := NewEmbedder("test-key",
		WithEmbeddingDimension(2),
		WithEmbeddingClientOptions(WithBaseURL(server.URL)),
	)

	vectors, err := embedder.BatchEmbed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	assert.Equal(t, "text-embedding-3-small", request["model"])
	assert.Equal(t, []any{"first", "second"}, request["input"])
	assert.EqualValues(t, 2, request["dimensions"])
}

func TestEmbedder_BatchEmbedRejectsInvalidBatch(t *testing.T) {
	embedder := NewEmbedder("test-key")

	_, err := embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)

	_, err = embedder.BatchEmbed(context.Background(), make([]string, MaxEmbeddingBatchSize+1))
	assert.Error(t, err)
}
