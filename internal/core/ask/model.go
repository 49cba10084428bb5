package ask

import (
	"errors"

	"github.com/samber/mo"
)

var (
	// ErrEmptyQuery は質問文が空の場合のエラー
	ErrEmptyQuery = errors.New("query is empty")

	// ErrCollectionNotReady は文書の取り込み前に質問された場合のエラー
	ErrCollectionNotReady = errors.New("no document has been processed yet; upload and process a PDF first")
)

// ErrorPrefix は失敗時の表示文字列の接頭辞
const ErrorPrefix = "Error: "

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	Collection string // 検索対象のコレクション
	Query      string // ユーザーの質問文
	TopK       int    // 検索するチャンク数（デフォルト: 4）
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer  string            // LLMによる回答
	Sources []SourceReference // 参照したチャンク
}

// SourceReference は回答の根拠となったチャンクを表す
type SourceReference struct {
	Ordinal int
	Content string
	Score   float64
}

// DisplayText は結果を表示用の文字列にする。失敗時は "Error: <message>" を返す
func DisplayText[T any](result mo.Result[T], answer func(T) string) string {
	if result.IsError() {
		return ErrorPrefix + result.Error().Error()
	}
	return answer(result.MustGet())
}

// AnswerText は mo.Result[string] を表示用の文字列にする
func AnswerText(result mo.Result[string]) string {
	return DisplayText(result, func(s string) string { return s })
}
