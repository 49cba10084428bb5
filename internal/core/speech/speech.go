package speech

import (
	"context"
	"errors"
)

// 音声フォーマット
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// ErrEmptyAudio は合成結果が空の場合のエラー
var ErrEmptyAudio = errors.New("synthesized audio is empty")

// Audio は合成された音声データを表す
type Audio struct {
	Data   []byte
	Format string // "mp3" など
}

// IsEmpty は音声データが空かどうかを返す
func (a Audio) IsEmpty() bool {
	return len(a.Data) == 0
}

// MIMEType はフォーマットに対応する MIME タイプを返す
func (a Audio) MIMEType() string {
	return MIMEType(a.Format)
}

// MIMEType はフォーマット名から MIME タイプを返す
func MIMEType(format string) string {
	switch format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// Synthesizer はテキストから音声を合成するインターフェース
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Transcriber は音声をテキストに変換するインターフェース。
// 何も認識できなかった場合は空文字列を返す
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
