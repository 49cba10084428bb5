package ingestion

import "context"

// CollectionWriter はベクトルコレクションへの書き込みインターフェース
// テスト時のモック用に消費者側で定義
type CollectionWriter interface {
	// ReplaceCollection はコレクションの既存内容を全て破棄し、chunks と vectors で置き換える
	ReplaceCollection(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) error
}
