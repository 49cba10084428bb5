package ingestion

import "fmt"

// Chunk は埋め込み・検索の単位となる文書断片を表す
type Chunk struct {
	Ordinal int    `json:"ordinal"` // 分割順（元文書内の位置を暗黙に表す）
	Content string `json:"content"`
	Tokens  int    `json:"tokens"`
}

// FileMeta は取り込んだ文書のメタデータを表す
type FileMeta struct {
	Name   string  `json:"fileName"`
	Size   int64   `json:"size"`   // バイト数
	SizeKB float64 `json:"sizeKB"` // 表示用（KB）
}

// NewFileMeta はファイル名とバイト数から FileMeta を作成する
func NewFileMeta(name string, size int64) FileMeta {
	return FileMeta{
		Name:   name,
		Size:   size,
		SizeKB: float64(size) / 1024,
	}
}

// String は "name (12.34 KB)" 形式で返す
func (m FileMeta) String() string {
	return fmt.Sprintf("%s (%.2f KB)", m.Name, m.SizeKB)
}

// IngestResult は取り込み処理の結果を表す
type IngestResult struct {
	Collection string
	File       FileMeta
	Chunks     int
}
