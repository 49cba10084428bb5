package search

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultLimit は検索件数のデフォルト値
const DefaultLimit = 4

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService は検索のビジネスロジックを提供する
type SearchService struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

// SearchServiceOption は SearchService のオプション
type SearchServiceOption func(*SearchService)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// SearchParams は検索パラメータを表す
type SearchParams struct {
	Collection string
	Query      string
	Limit      int
}

// Search はクエリに基づいてベクトル検索を実行する。
// コレクションが存在しない場合は類似検索を行わずに ErrCollectionNotFound を返す
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	// バリデーション
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	// コレクションの存在確認
	exists, err := s.repo.CollectionExists(ctx, params.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, params.Collection)
	}

	// クエリをEmbeddingに変換
	queryVector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// デフォルトのLimit設定
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	results, err := s.repo.SearchCollection(ctx, params.Collection, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.logger.Debug("ベクトル検索が完了しました",
		"collection", params.Collection,
		"limit", limit,
		"results", len(results),
	)

	return results, nil
}
