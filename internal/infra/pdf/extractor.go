// Package pdf はPDF文書からのテキスト抽出を提供する
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
)

// Extractor はPDFの全ページのテキストを順に連結して返す
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractText はページ間に区切りを入れずにテキストを連結する。
// 構造が壊れたPDFは ingestion.ErrUnreadableDocument を返す
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ingestion.ErrEmptyDocument
	}

	// パーサは不正な入力で panic することがある
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ingestion.ErrUnreadableDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ingestion.ErrUnreadableDocument, err)
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return "", fmt.Errorf("%w: no pages", ingestion.ErrUnreadableDocument)
	}

	fonts := make(map[string]*pdf.Font)
	var content strings.Builder
	skipped := 0

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}

		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			// 読めないページは飛ばす
			skipped++
			e.logger.Warn("ページのテキストを抽出できませんでした", "page", i, "error", err)
			continue
		}
		content.WriteString(pageText)
	}

	e.logger.Debug("PDFからテキストを抽出しました",
		"pages", pageCount,
		"skippedPages", skipped,
		"length", content.Len(),
	)

	return content.String(), nil
}

// インターフェース実装の確認
var _ ingestion.TextExtractor = (*Extractor)(nil)
