package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TextExtractor は文書バイト列からテキストを抽出するインターフェース
type TextExtractor interface {
	// ExtractText は全ページを順に区切りなしで連結したテキストを返す
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Splitter はテキストをチャンクに分割するインターフェース
type Splitter interface {
	SplitText(text string) []string
}

// TokenCounter はトークン数を数えるインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed は複数テキストのEmbeddingを入力順に生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// MaxBatchSize は1回の BatchEmbed で扱える最大件数を返す
	MaxBatchSize() int
}

// IngestService は文書取り込みのユースケースを提供する
type IngestService struct {
	extractor      TextExtractor
	splitter       Splitter
	embedder       Embedder
	writer         CollectionWriter
	tokenCounter   TokenCounter // オプショナル
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

type ingestServiceOptions struct {
	tokenCounter   TokenCounter
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

// IngestServiceOption は IngestService のオプション設定
type IngestServiceOption func(*ingestServiceOptions)

// WithIngestLogger は IngestService にロガーを設定する
func WithIngestLogger(logger *slog.Logger) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.logger = logger
	}
}

// WithIngestTokenCounter はチャンクのトークン数計測を有効にする
func WithIngestTokenCounter(counter TokenCounter) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.tokenCounter = counter
	}
}

// WithIngestPipelineConfig はパイプライン設定を上書きする
func WithIngestPipelineConfig(cfg *PipelineConfig) IngestServiceOption {
	return func(o *ingestServiceOptions) {
		o.pipelineConfig = cfg
	}
}

// NewIngestService は新しいIngestServiceを作成する
func NewIngestService(
	extractor TextExtractor,
	splitter Splitter,
	embedder Embedder,
	writer CollectionWriter,
	opts ...IngestServiceOption,
) *IngestService {
	options := ingestServiceOptions{
		pipelineConfig: DefaultPipelineConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.pipelineConfig == nil {
		options.pipelineConfig = DefaultPipelineConfig()
	}

	return &IngestService{
		extractor:      extractor,
		splitter:       splitter,
		embedder:       embedder,
		writer:         writer,
		tokenCounter:   options.tokenCounter,
		pipelineConfig: options.pipelineConfig,
		logger:         options.logger,
	}
}

// Ingest は文書を取り込み、コレクションの内容を置き換える。
// どの段階で失敗しても全体を失敗として返す
func (s *IngestService) Ingest(ctx context.Context, collection string, data []byte, filename string) (*IngestResult, error) {
	startedAt := time.Now()

	// 1. バリデーション
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	meta := NewFileMeta(filename, int64(len(data)))
	s.logger.Info("文書の取り込みを開始します",
		"collection", collection,
		"fileName", meta.Name,
		"sizeKB", meta.SizeKB,
	)

	// 2. テキスト抽出
	text, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		if errors.Is(err, ErrEmptyDocument) || errors.Is(err, ErrUnreadableDocument) {
			return nil, err
		}
		// キャンセルやタイムアウトは文書の破損として扱わない
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	// 3. チャンク分割
	chunks := s.buildChunks(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	s.logger.Info("チャンク分割が完了しました",
		"textLength", len([]rune(text)),
		"chunks", len(chunks),
	)

	// 4. Embedding生成
	batchSize := effectiveBatchSize(s.pipelineConfig, s.embedder)
	vectors, err := embedChunks(ctx, s.embedder, chunks, batchSize, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	// 5. コレクションを置き換え
	if err := s.writer.ReplaceCollection(ctx, collection, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to replace collection: %w", err)
	}

	s.logger.Info("文書の取り込みが完了しました",
		"collection", collection,
		"fileName", meta.Name,
		"chunks", len(chunks),
		"duration", time.Since(startedAt).String(),
	)

	return &IngestResult{
		Collection: collection,
		File:       meta,
		Chunks:     len(chunks),
	}, nil
}

func (s *IngestService) buildChunks(text string) []Chunk {
	parts := s.splitter.SplitText(text)

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c := Chunk{
			Ordinal: len(chunks),
			Content: part,
		}
		if s.tokenCounter != nil {
			c.Tokens = s.tokenCounter.CountTokens(part)
		}
		chunks = append(chunks, c)
	}
	return chunks
}
