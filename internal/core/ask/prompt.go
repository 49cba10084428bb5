package ask

import (
	"strings"

	"github.com/jinford/doc-voicebot/internal/core/search"
)

// systemInstruction はアシスタントの役割と口調の指示
const systemInstruction = "You are a helpful and dedicated female assistant. " +
	"Your primary role is to assist the user by providing accurate and thoughtful answers based on the given context. " +
	"If the user asks any questions related to the provided information, respond in a courteous and professional manner."

// BuildPrompt は検索したチャンクと質問文から1つのプロンプトを構築する
func BuildPrompt(query string, chunks []*search.SearchResult) string {
	var sb strings.Builder

	sb.WriteString(systemInstruction)
	sb.WriteString("\n")

	// コンテキスト
	sb.WriteString(BuildContext(chunks))
	sb.WriteString("\n")

	// ユーザーの質問
	sb.WriteString("**Question:** ")
	sb.WriteString(query)

	return sb.String()
}

// BuildContext はチャンク本文を空行区切りで連結する
func BuildContext(chunks []*search.SearchResult) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == nil || c.Content == "" {
			continue
		}
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
