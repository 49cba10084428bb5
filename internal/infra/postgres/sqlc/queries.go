// Package sqlc はベクトルコレクション用のクエリを保持する。
// sqlc が生成するコードと同じ形（DBTX / Queries / Querier）に揃えている
package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"
)

// DBTX は pgxpool.Pool と pgx.Tx の共通インターフェース
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// Querier はコレクション操作のクエリ一覧
type Querier interface {
	DeleteCollection(ctx context.Context, collection string) (int64, error)
	InsertChunks(ctx context.Context, arg []InsertChunkParams) error
	CollectionExists(ctx context.Context, collection string) (bool, error)
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)
	ListChunks(ctx context.Context, collection string) ([]CollectionChunk, error)
	ListCollections(ctx context.Context) ([]ListCollectionsRow, error)
}

// Queries は Querier の実装
type Queries struct {
	db DBTX
}

// New は新しい Queries を返す
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx はトランザクションに紐づいた Queries を返す
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

var _ Querier = (*Queries)(nil)

// CollectionChunk は collection_chunks テーブルの1行
type CollectionChunk struct {
	ID         pgtype.UUID
	Collection string
	Ordinal    int32
	Content    string
	Tokens     int32
	Embedding  pgvector.Vector
	CreatedAt  pgtype.Timestamptz
}

const deleteCollection = `-- name: DeleteCollection :execrows
DELETE FROM collection_chunks WHERE collection = $1
`

func (q *Queries) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCollection, collection)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const insertChunk = `-- name: InsertChunk :exec
INSERT INTO collection_chunks (id, collection, ordinal, content, tokens, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertChunkParams は InsertChunk の引数
type InsertChunkParams struct {
	ID         pgtype.UUID
	Collection string
	Ordinal    int32
	Content    string
	Tokens     int32
	Embedding  pgvector.Vector
}

// InsertChunks は1回の往復で全チャンクを挿入する
func (q *Queries) InsertChunks(ctx context.Context, arg []InsertChunkParams) error {
	if len(arg) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(insertChunk, a.ID, a.Collection, a.Ordinal, a.Content, a.Tokens, a.Embedding)
	}

	br := q.db.SendBatch(ctx, batch)
	for range arg {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

const collectionExists = `-- name: CollectionExists :one
SELECT EXISTS (SELECT 1 FROM collection_chunks WHERE collection = $1)
`

func (q *Queries) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, collectionExists, collection).Scan(&exists)
	return exists, err
}

const searchChunks = `-- name: SearchChunks :many
SELECT ordinal, content, 1 - (embedding <=> $2) AS score
FROM collection_chunks
WHERE collection = $1
ORDER BY embedding <=> $2, ordinal
LIMIT $3
`

// SearchChunksParams は SearchChunks の引数
type SearchChunksParams struct {
	Collection  string
	QueryVector pgvector.Vector
	RowLimit    int32
}

// SearchChunksRow は SearchChunks の結果行
type SearchChunksRow struct {
	Ordinal int32
	Content string
	Score   float64
}

func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunks, arg.Collection, arg.QueryVector, arg.RowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SearchChunksRow
	for rows.Next() {
		var i SearchChunksRow
		if err := rows.Scan(&i.Ordinal, &i.Content, &i.Score); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listChunks = `-- name: ListChunks :many
SELECT id, collection, ordinal, content, tokens, embedding, created_at
FROM collection_chunks
WHERE collection = $1
ORDER BY ordinal
`

func (q *Queries) ListChunks(ctx context.Context, collection string) ([]CollectionChunk, error) {
	rows, err := q.db.Query(ctx, listChunks, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CollectionChunk
	for rows.Next() {
		var i CollectionChunk
		if err := rows.Scan(
			&i.ID,
			&i.Collection,
			&i.Ordinal,
			&i.Content,
			&i.Tokens,
			&i.Embedding,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCollections = `-- name: ListCollections :many
SELECT collection, COUNT(*) AS chunk_count, MAX(created_at)::timestamptz AS updated_at
FROM collection_chunks
GROUP BY collection
ORDER BY collection
`

// ListCollectionsRow は ListCollections の結果行
type ListCollectionsRow struct {
	Collection string
	ChunkCount int64
	UpdatedAt  pgtype.Timestamptz
}

func (q *Queries) ListCollections(ctx context.Context) ([]ListCollectionsRow, error) {
	rows, err := q.db.Query(ctx, listCollections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListCollectionsRow
	for rows.Next() {
		var i ListCollectionsRow
		if err := rows.Scan(&i.Collection, &i.ChunkCount, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
