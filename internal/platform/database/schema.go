package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migrate はベクトルコレクション用のスキーマを作成します（冪等）
func Migrate(ctx context.Context, db *Database, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS collection_chunks (
	id         UUID PRIMARY KEY,
	collection TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	content    TEXT NOT NULL,
	tokens     INTEGER NOT NULL DEFAULT 0,
	embedding  vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (collection, ordinal)
)`, dimension),
		`CREATE INDEX IF NOT EXISTS collection_chunks_collection_idx ON collection_chunks (collection)`,
		`CREATE INDEX IF NOT EXISTS collection_chunks_embedding_idx ON collection_chunks USING hnsw (embedding vector_cosine_ops)`,
	}

	// 複数プロセスからの同時マイグレーションを直列化する
	_, err := Transact(ctx, db, func(tx pgx.Tx) (struct{}, error) {
		if err := AcquireXactLock(ctx, tx, GenerateLockID("doc-voicebot", "schema")); err != nil {
			return struct{}{}, err
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return struct{}{}, fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return struct{}{}, nil
	})
	return err
}
