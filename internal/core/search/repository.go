package search

import (
	"context"
	"errors"
)

// ErrCollectionNotFound はコレクションが存在しない場合のエラー
var ErrCollectionNotFound = errors.New("collection not found")

// Repository はベクトルコレクションの読み取りインターフェース
type Repository interface {
	// CollectionExists はコレクションにチャンクが1件以上存在するかを返す
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// SearchCollection はコレクション内で queryVector に近い順に最大 limit 件を返す
	SearchCollection(ctx context.Context, collection string, queryVector []float32, limit int) ([]*SearchResult, error)
}
