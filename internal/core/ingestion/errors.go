package ingestion

import "errors"

var (
	// ErrEmptyDocument は文書が空、またはテキストを含まない場合のエラー
	ErrEmptyDocument = errors.New("document is empty")

	// ErrUnreadableDocument は文書を解析できない場合のエラー
	ErrUnreadableDocument = errors.New("document could not be read")

	// ErrEmbeddingMismatch は Embedding の件数がチャンク数と一致しない場合のエラー
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
