package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/doc-voicebot/internal/core/search"
)

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// AskService は質問応答のビジネスロジックを提供する
type AskService struct {
	searchService *search.SearchService
	llm           LLMClient
	topK          int
	logger        *slog.Logger
}

type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// WithAskTopK は検索するチャンク数のデフォルトを設定する
func WithAskTopK(topK int) AskServiceOption {
	return func(s *AskService) {
		s.topK = topK
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(
	searchService *search.SearchService,
	llm LLMClient,
	opts ...AskServiceOption,
) *AskService {
	svc := &AskService{
		searchService: searchService,
		llm:           llm,
		topK:          search.DefaultLimit,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.topK <= 0 {
		svc.topK = search.DefaultLimit
	}

	return svc
}

// Answer は質問に対する回答文を返す。失敗は Result のエラー側で表す
func (s *AskService) Answer(ctx context.Context, collection, query string) mo.Result[string] {
	result := s.Ask(ctx, AskParams{Collection: collection, Query: query})
	if result.IsError() {
		return mo.Err[string](result.Error())
	}
	return mo.Ok(result.MustGet().Answer)
}

// Ask は質問に対してRAGベースで回答を生成する。
// どの段階で失敗してもパニックやエラーの伝播はせず、Result のエラー側で返す
func (s *AskService) Ask(ctx context.Context, params AskParams) (result mo.Result[*AskResult]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("質問応答中にパニックが発生しました", "panic", r)
			result = mo.Err[*AskResult](fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	// 1. バリデーション
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return mo.Err[*AskResult](ErrEmptyQuery)
	}

	// 2. デフォルト値の設定
	topK := params.TopK
	if topK <= 0 {
		topK = s.topK
	}

	// 3. 類似検索
	s.logger.Info("executing similarity search",
		"collection", params.Collection,
		"query", query,
		"topK", topK,
	)

	chunks, err := s.searchService.Search(ctx, search.SearchParams{
		Collection: params.Collection,
		Query:      query,
		Limit:      topK,
	})
	if err != nil {
		if errors.Is(err, search.ErrCollectionNotFound) {
			return mo.Err[*AskResult](ErrCollectionNotReady)
		}
		s.logger.Warn("類似検索に失敗しました", "error", err)
		return mo.Err[*AskResult](fmt.Errorf("retrieval failed: %w", err))
	}

	s.logger.Info("similarity search completed", "chunks", len(chunks))

	// 4. プロンプト構築
	prompt := BuildPrompt(query, chunks)

	// 5. LLMで回答生成（1回のみ）
	s.logger.Info("generating answer with LLM")
	answer, err := s.llm.GenerateCompletion(ctx, prompt)
	if err != nil {
		s.logger.Warn("回答生成に失敗しました", "error", err)
		return mo.Err[*AskResult](fmt.Errorf("generation failed: %w", err))
	}

	// 6. SourceReferenceを整形して返却
	sources := make([]SourceReference, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, SourceReference{
			Ordinal: c.Ordinal,
			Content: c.Content,
			Score:   c.Score,
		})
	}

	s.logger.Info("ask completed successfully",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return mo.Ok(&AskResult{
		Answer:  answer,
		Sources: sources,
	})
}
