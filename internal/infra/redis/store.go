// Package redis は RediSearch のベクトル索引を使ったベクトルストアを提供する
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/search"
)

const (
	// HNSW 索引のパラメータ
	defaultEFConstruction = 200
	defaultM              = 16

	fieldContent = "content"
	fieldVector  = "vector"
	fieldOrdinal = "ordinal"
	fieldTokens  = "tokens"
	fieldScore   = "score"
)

// Config は Redis 接続設定
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store はコレクションごとに RediSearch 索引を1つ持つベクトルストア。
// 索引名は idx:<collection>、キーは <collection>:chunk:<ordinal>
type Store struct {
	client    *goredis.Client
	dimension int
	logger    *slog.Logger
}

// NewStore は Redis に接続して Store を作成する
func NewStore(ctx context.Context, cfg Config, dimension int, logger *slog.Logger) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// FT.SEARCH の応答を配列で扱うため RESP2 を使う
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Protocol: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, dimension: dimension, logger: logger}, nil
}

// Close は接続を閉じる
func (s *Store) Close() error {
	return s.client.Close()
}

func indexName(collection string) string {
	return "idx:" + collection
}

func keyPrefix(collection string) string {
	return collection + ":chunk:"
}

// ReplaceCollection は索引ごと既存の文書を削除し、新しいチャンクで作り直す
func (s *Store) ReplaceCollection(ctx context.Context, collection string, chunks []ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ingestion.ErrEmbeddingMismatch, len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(v))
		}
	}

	// DD で索引に紐づくハッシュも一緒に消す
	if err := s.client.Do(ctx, "FT.DROPINDEX", indexName(collection), "DD").Err(); err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("failed to drop index: %w", err)
	}

	if err := s.createIndex(ctx, collection); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	prefix := keyPrefix(collection)
	for i, c := range chunks {
		pipe.HSet(ctx, prefix+strconv.Itoa(c.Ordinal),
			fieldContent, c.Content,
			fieldVector, encodeVector(vectors[i]),
			fieldOrdinal, c.Ordinal,
			fieldTokens, c.Tokens,
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	s.logger.Debug("コレクションを置き換えました",
		"collection", collection,
		"chunks", len(chunks),
	)
	return nil
}

func (s *Store) createIndex(ctx context.Context, collection string) error {
	err := s.client.Do(ctx, "FT.CREATE", indexName(collection),
		"ON", "HASH",
		"PREFIX", "1", keyPrefix(collection),
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dimension),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(defaultEFConstruction),
		"M", strconv.Itoa(defaultM),
		fieldContent, "TEXT",
		fieldOrdinal, "NUMERIC", "SORTABLE",
	).Err()
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// CollectionExists は索引があり文書が1件以上あるかを返す
func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	result, err := s.client.Do(ctx, "FT.SEARCH", indexName(collection), "*", "LIMIT", "0", "0").Result()
	if err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check collection: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return false, fmt.Errorf("unexpected FT.SEARCH reply: %T", result)
	}
	total, ok := values[0].(int64)
	return ok && total > 0, nil
}

// SearchCollection は KNN 検索でコサイン類似度の高い順に返す
func (s *Store) SearchCollection(ctx context.Context, collection string, queryVector []float32, limit int) ([]*search.SearchResult, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(queryVector))
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", limit, fieldVector, fieldScore)
	result, err := s.client.Do(ctx, "FT.SEARCH", indexName(collection), query,
		"PARAMS", "2", "query_vector", encodeVector(queryVector),
		"SORTBY", fieldScore, "ASC",
		"RETURN", "3", fieldContent, fieldOrdinal, fieldScore,
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, search.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return parseSearchReply(result)
}

// encodeVector は float32 をリトルエンディアンのバイト列にする（RediSearch の FLOAT32 形式）
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// parseSearchReply は RESP2 の FT.SEARCH 応答 [total, key, [field, value, ...], ...] を読む
func parseSearchReply(reply interface{}) ([]*search.SearchResult, error) {
	values, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected FT.SEARCH reply: %T", reply)
	}
	if len(values) == 0 {
		return nil, nil
	}

	results := make([]*search.SearchResult, 0, (len(values)-1)/2)
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}

		result := &search.SearchResult{}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case fieldContent:
				result.Content = value
			case fieldOrdinal:
				ordinal, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("invalid ordinal %q: %w", value, err)
				}
				result.Ordinal = ordinal
			case fieldScore:
				distance, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid score %q: %w", value, err)
				}
				// COSINE はコサイン距離を返すので類似度に直す
				result.Score = 1 - distance
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// インターフェース実装の確認
var (
	_ ingestion.CollectionWriter = (*Store)(nil)
	_ search.Repository          = (*Store)(nil)
)
