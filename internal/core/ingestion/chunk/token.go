package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter は tiktoken を利用してトークン数を数える
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は cl100k_base エンコーディング（text-embedding-3-small と互換）の TokenCounter を作成する
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// CountTokens はテキストのトークン数を返す
func (t *TokenCounter) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}
