package search

// SearchResult はベクトル検索の結果を表す
type SearchResult struct {
	Ordinal int     `json:"ordinal"`
	Content string  `json:"content"`
	Score   float64 `json:"score"` // コサイン類似度（大きいほど近い）
}
