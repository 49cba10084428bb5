// Package memory はプロセス内で完結するベクトルストアを提供する。
// 総当たりのコサイン類似度で検索する
package memory

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/search"
)

// ErrDimensionMismatch はベクトル次元が揃っていない場合のエラー
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type entry struct {
	chunk  ingestion.Chunk
	vector []float32
	norm   float64
}

// Store はコレクション名ごとにチャンクとベクトルを保持する
type Store struct {
	mu          sync.RWMutex
	collections map[string][]entry
}

// NewStore は空の Store を作成する
func NewStore() *Store {
	return &Store{collections: make(map[string][]entry)}
}

// ReplaceCollection はコレクションの内容を丸ごと置き換える
func (s *Store) ReplaceCollection(ctx context.Context, collection string, chunks []ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return ingestion.ErrEmbeddingMismatch
	}

	entries := make([]entry, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != len(vectors[0]) {
			return ErrDimensionMismatch
		}
		v := slices.Clone(vectors[i])
		entries[i] = entry{chunk: chunk, vector: v, norm: norm(v)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) == 0 {
		delete(s.collections, collection)
		return nil
	}
	s.collections[collection] = entries
	return nil
}

// CollectionExists はコレクションにチャンクがあるかを返す
func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]) > 0, nil
}

// SearchCollection はコサイン類似度の高い順に最大 limit 件を返す
func (s *Store) SearchCollection(ctx context.Context, collection string, queryVector []float32, limit int) ([]*search.SearchResult, error) {
	s.mu.RLock()
	entries := s.collections[collection]
	s.mu.RUnlock()

	if len(entries) == 0 {
		return nil, search.ErrCollectionNotFound
	}
	if len(queryVector) != len(entries[0].vector) {
		return nil, ErrDimensionMismatch
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	qNorm := norm(queryVector)
	results := make([]*search.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, &search.SearchResult{
			Ordinal: e.chunk.Ordinal,
			Content: e.chunk.Content,
			Score:   cosine(queryVector, e.vector, qNorm, e.norm),
		})
	}

	// 同点は元の順序を保つ
	slices.SortStableFunc(results, func(a, b *search.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// インターフェース実装の確認
var (
	_ ingestion.CollectionWriter = (*Store)(nil)
	_ search.Repository          = (*Store)(nil)
)
