package gtts

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTokenLength は1リクエストで送れる最大文字数
const MaxTokenLength = 100

// 区切りとして扱う句読点（ピリオドは後ろが空白か末尾のときのみ）
const punctuation = "?!？！,¡()[]¿…‥،;:—。，、：\n"

// Tokenize は読み上げ用に文を句読点で区切り、各トークンを MaxTokenLength 文字以内に収める
func Tokenize(text string) []string {
	var tokens []string
	for _, sentence := range splitSentences(text) {
		for _, tok := range minimize(sentence, MaxTokenLength) {
			if isSpeakable(tok) {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i, r := range runes {
		cut := strings.ContainsRune(punctuation, r)
		if r == '.' && (i == len(runes)-1 || unicode.IsSpace(runes[i+1])) {
			cut = true
		}
		if cut {
			sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, strings.TrimSpace(string(runes[start:])))
	}
	return sentences
}

// minimize は limit 文字を超えるトークンを、limit 以内の最後の空白で再帰的に切る
func minimize(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	runes := []rune(text)
	idx := strings.LastIndexFunc(string(runes[:limit]), unicode.IsSpace)
	if idx <= 0 {
		// 空白が無ければ limit 文字で強制的に切る
		return append([]string{string(runes[:limit])}, minimize(string(runes[limit:]), limit)...)
	}

	head := string(runes[:limit])[:idx]
	rest := text[len(head):]
	return append([]string{strings.TrimSpace(head)}, minimize(rest, limit)...)
}

// isSpeakable は句読点と空白以外の文字を含むかどうか
func isSpeakable(token string) bool {
	for _, r := range token {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !strings.ContainsRune(punctuation, r) {
			return true
		}
	}
	return false
}
