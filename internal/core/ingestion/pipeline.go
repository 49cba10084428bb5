package ingestion

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// DefaultEmbeddingBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultEmbeddingBatchSize = 100
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

// PipelineConfig は取り込みパイプラインの設定
type PipelineConfig struct {
	// EmbeddingBatchSize はEmbeddingバッチサイズ（Embedder.MaxBatchSize()でクリップされる）
	EmbeddingBatchSize int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		EmbeddingBatchSize: DefaultEmbeddingBatchSize,
	}
}

// effectiveBatchSize は設定値と Embedder の上限から実際のバッチサイズを決める
func effectiveBatchSize(cfg *PipelineConfig, embedder Embedder) int {
	size := DefaultEmbeddingBatchSize
	if cfg != nil && cfg.EmbeddingBatchSize > 0 {
		size = cfg.EmbeddingBatchSize
	}
	if limit := embedder.MaxBatchSize(); limit > 0 && size > limit {
		size = limit
	}
	if size < MinBatchSize {
		size = MinBatchSize
	}
	return size
}

// embedChunks はチャンクをバッチに分けて順番に Embedding を生成する。
// 1件でも失敗した場合は全体を失敗として扱う
func embedChunks(ctx context.Context, embedder Embedder, chunks []Chunk, batchSize int, logger *slog.Logger) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(texts), len(batch))
		}

		vectors = append(vectors, batch...)

		logger.Debug("Embeddingバッチを生成しました",
			"start", start,
			"end", end,
		)
	}

	return vectors, nil
}
