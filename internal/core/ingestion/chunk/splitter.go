package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators は段落 → 行 → 文 → 単語 → 文字 の順で試す区切り文字
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveSplitter は自然な境界を優先しながらテキストを再帰的に分割する。
// 長さは文字数（rune数）で数える
type RecursiveSplitter struct {
	chunkSize     int
	chunkOverlap  int
	separators    []string
	keepSeparator bool
	length        func(string) int
}

// SplitterOption は RecursiveSplitter のオプション
type SplitterOption func(*RecursiveSplitter)

// WithSeparators は区切り文字の優先順位を上書きする
func WithSeparators(separators ...string) SplitterOption {
	return func(s *RecursiveSplitter) {
		s.separators = append([]string(nil), separators...)
	}
}

// WithKeepSeparator は区切り文字を直前の断片の末尾に残すかどうかを設定する
func WithKeepSeparator(keep bool) SplitterOption {
	return func(s *RecursiveSplitter) {
		s.keepSeparator = keep
	}
}

// NewRecursiveSplitter は新しい RecursiveSplitter を作成する
func NewRecursiveSplitter(chunkSize, chunkOverlap int, opts ...SplitterOption) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d): %d", chunkSize, chunkOverlap)
	}

	s := &RecursiveSplitter{
		chunkSize:     chunkSize,
		chunkOverlap:  chunkOverlap,
		separators:    append([]string(nil), DefaultSeparators...),
		keepSeparator: true,
		length:        utf8.RuneCountInString,
	}
	for _, opt := range opts {
		opt(s)
	}

	// 最後は必ず文字単位の分割にフォールバックさせる
	if len(s.separators) == 0 || s.separators[len(s.separators)-1] != "" {
		s.separators = append(s.separators, "")
	}

	return s, nil
}

// SplitText はテキストをチャンクに分割する
func (s *RecursiveSplitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	var finalChunks []string

	// テキスト中に現れる最初の区切り文字を選ぶ
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	pieces := s.splitOn(text, separator)

	mergeSeparator := separator
	if s.keepSeparator {
		mergeSeparator = ""
	}

	var goodPieces []string
	for _, piece := range pieces {
		if s.length(piece) < s.chunkSize {
			goodPieces = append(goodPieces, piece)
			continue
		}

		if len(goodPieces) > 0 {
			finalChunks = append(finalChunks, s.merge(goodPieces, mergeSeparator)...)
			goodPieces = nil
		}

		// 大きすぎる断片は次の区切り文字で再帰的に分割する
		if len(remaining) == 0 {
			finalChunks = append(finalChunks, piece)
		} else {
			finalChunks = append(finalChunks, s.split(piece, remaining)...)
		}
	}

	if len(goodPieces) > 0 {
		finalChunks = append(finalChunks, s.merge(goodPieces, mergeSeparator)...)
	}

	return finalChunks
}

// splitOn は区切り文字で分割する。空文字の場合は1文字ずつに分割する
func (s *RecursiveSplitter) splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, separator)
		if s.keepSeparator {
			for i := 0; i < len(parts)-1; i++ {
				parts[i] += separator
			}
		}
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge は小さな断片をチャンクサイズ以内に結合し、末尾の断片をオーバーラップとして次のチャンクに引き継ぐ
func (s *RecursiveSplitter) merge(pieces []string, separator string) []string {
	separatorLen := s.length(separator)
	joinCost := func(n int) int {
		if n > 0 {
			return separatorLen
		}
		return 0
	}

	var docs []string
	var current []string
	total := 0

	for _, piece := range pieces {
		length := s.length(piece)

		if total+length+joinCost(len(current)) > s.chunkSize && len(current) > 0 {
			if doc := joinPieces(current, separator); doc != "" {
				docs = append(docs, doc)
			}

			// オーバーラップ長以下になるまで先頭から捨てる
			for total > s.chunkOverlap || (total > 0 && total+length+joinCost(len(current)) > s.chunkSize) {
				total -= s.length(current[0]) + joinCost(len(current)-1)
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += length + joinCost(len(current)-1)
	}

	if doc := joinPieces(current, separator); doc != "" {
		docs = append(docs, doc)
	}

	return docs
}

func joinPieces(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}
