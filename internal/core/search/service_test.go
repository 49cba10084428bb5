package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	called bool
	err    error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

type stubSearchRepo struct {
	exists         bool
	existsErr      error
	results        []*SearchResult
	lastLimit      int
	lastCollection string
	searched       bool
}

func (r *stubSearchRepo) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return r.exists, r.existsErr
}

func (r *stubSearchRepo) SearchCollection(ctx context.Context, collection string, queryVector []float32, limit int) ([]*SearchResult, error) {
	r.searched = true
	r.lastLimit = limit
	r.lastCollection = collection
	return r.results, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func TestSearchService_SearchUsesDefaultLimitAndEmbedder(t *testing.T) {
	repo := &stubSearchRepo{
		exists: true,
		results: []*SearchResult{{
			Ordinal: 0,
			Content: "The capital of France is Paris.",
			Score:   0.9,
		}},
	}
	embedder := &stubEmbedder{}
	svc := NewSearchService(repo, embedder, WithSearchLogger(discardLogger()))

	results, err := svc.Search(context.Background(), SearchParams{
		Collection: "xeven_voicebot",
		Query:      "What is the capital of France?",
		Limit:      0, // default should be applied
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, DefaultLimit, repo.lastLimit)
	assert.Equal(t, "xeven_voicebot", repo.lastCollection)
	assert.True(t, embedder.called)
}

func TestSearchService_MissingCollectionSkipsSimilaritySearch(t *testing.T) {
	repo := &stubSearchRepo{exists: false}
	embedder := &stubEmbedder{}
	svc := NewSearchService(repo, embedder, WithSearchLogger(discardLogger()))

	_, err := svc.Search(context.Background(), SearchParams{Collection: "missing", Query: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.False(t, repo.searched)
	assert.False(t, embedder.called)
}

func TestSearchService_Validation(t *testing.T) {
	svc := NewSearchService(&stubSearchRepo{exists: true}, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	_, err := svc.Search(context.Background(), SearchParams{Collection: "c"})
	assert.Error(t, err)

	_, err = svc.Search(context.Background(), SearchParams{Query: "q"})
	assert.Error(t, err)
}

func TestSearchService_PropagatesErrors(t *testing.T) {
	checkErr := errors.New("connection refused")
	svc := NewSearchService(&stubSearchRepo{existsErr: checkErr}, &stubEmbedder{}, WithSearchLogger(discardLogger()))

	_, err := svc.Search(context.Background(), SearchParams{Collection: "c", Query: "q"})
	assert.ErrorIs(t, err, checkErr)

	embedErr := errors.New("rate limited")
	svc = NewSearchService(&stubSearchRepo{exists: true}, &stubEmbedder{err: embedErr}, WithSearchLogger(discardLogger()))

	_, err = svc.Search(context.Background(), SearchParams{Collection: "c", Query: "q"})
	assert.ErrorIs(t, err, embedErr)
}
