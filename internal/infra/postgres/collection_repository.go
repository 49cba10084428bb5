package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/search"
	"github.com/jinford/doc-voicebot/internal/infra/postgres/sqlc"
	"github.com/jinford/doc-voicebot/internal/platform/database"
)

// pgvector 拡張やテーブルが未作成の場合のSQLSTATE
const sqlStateUndefinedTable = "42P01"

// StoredChunk は保存済みのチャンクを表す
type StoredChunk struct {
	ID        uuid.UUID
	Chunk     ingestion.Chunk
	Dimension int
	CreatedAt time.Time
}

// CollectionSummary はコレクションごとの集計を表す
type CollectionSummary struct {
	Name      string
	Chunks    int64
	UpdatedAt time.Time
}

// CollectionRepository は pgvector を使ったベクトルコレクションのリポジトリ。
// ingestion.CollectionWriter と search.Repository を実装する
type CollectionRepository struct {
	db *database.Database
	q  *sqlc.Queries
}

// NewCollectionRepository は新しい CollectionRepository を返す
func NewCollectionRepository(db *database.Database) *CollectionRepository {
	return &CollectionRepository{
		db: db,
		q:  sqlc.New(db.Pool),
	}
}

// コンパイル時の型チェック
var (
	_ ingestion.CollectionWriter = (*CollectionRepository)(nil)
	_ search.Repository          = (*CollectionRepository)(nil)
)

// ReplaceCollection はコレクションの既存チャンクを削除して新しいチャンクを挿入する。
// 同じコレクションへの置き換えはアドバイザリロックで直列化し、1トランザクションで行う
func (r *CollectionRepository) ReplaceCollection(ctx context.Context, collection string, chunks []ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ingestion.ErrEmbeddingMismatch, len(chunks), len(vectors))
	}

	params := make([]sqlc.InsertChunkParams, 0, len(chunks))
	for i, c := range chunks {
		params = append(params, sqlc.InsertChunkParams{
			ID:         UUIDToPgtype(uuid.New()),
			Collection: collection,
			Ordinal:    int32(c.Ordinal),
			Content:    c.Content,
			Tokens:     int32(c.Tokens),
			Embedding:  pgvector.NewVector(vectors[i]),
		})
	}

	_, err := database.Transact(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		if err := database.AcquireXactLock(ctx, tx, database.GenerateLockID("collection", collection)); err != nil {
			return struct{}{}, err
		}

		q := r.q.WithTx(tx)
		if _, err := q.DeleteCollection(ctx, collection); err != nil {
			return struct{}{}, fmt.Errorf("failed to delete collection: %w", err)
		}
		if err := q.InsertChunks(ctx, params); err != nil {
			return struct{}{}, fmt.Errorf("failed to insert chunks: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// CollectionExists はコレクションにチャンクが1件以上あるかを返す
func (r *CollectionRepository) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := r.q.CollectionExists(ctx, collection)
	if err != nil {
		// スキーマ未作成は「まだ何も取り込まれていない」とみなす
		if isUndefinedTable(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return exists, nil
}

// SearchCollection はコサイン距離の近い順に最大 limit 件を返す
func (r *CollectionRepository) SearchCollection(ctx context.Context, collection string, queryVector []float32, limit int) ([]*search.SearchResult, error) {
	rows, err := r.q.SearchChunks(ctx, sqlc.SearchChunksParams{
		Collection:  collection,
		QueryVector: pgvector.NewVector(queryVector),
		RowLimit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	results := make([]*search.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &search.SearchResult{
			Ordinal: int(row.Ordinal),
			Content: row.Content,
			Score:   row.Score,
		})
	}
	return results, nil
}

// ListChunks はコレクションのチャンクを順序番号順に返す
func (r *CollectionRepository) ListChunks(ctx context.Context, collection string) ([]*StoredChunk, error) {
	rows, err := r.q.ListChunks(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	chunks := make([]*StoredChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, &StoredChunk{
			ID: PgtypeToUUID(row.ID),
			Chunk: ingestion.Chunk{
				Ordinal: int(row.Ordinal),
				Content: row.Content,
				Tokens:  int(row.Tokens),
			},
			Dimension: len(row.Embedding.Slice()),
			CreatedAt: PgtypeToTime(row.CreatedAt),
		})
	}
	return chunks, nil
}

// ListCollections は保存済みのコレクション一覧を返す
func (r *CollectionRepository) ListCollections(ctx context.Context) ([]*CollectionSummary, error) {
	rows, err := r.q.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	summaries := make([]*CollectionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &CollectionSummary{
			Name:      row.Collection,
			Chunks:    row.ChunkCount,
			UpdatedAt: PgtypeToTime(row.UpdatedAt),
		})
	}
	return summaries, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUndefinedTable
}
