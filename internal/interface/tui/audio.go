package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jinford/doc-voicebot/internal/core/conversation"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

// AudioSink は回答音声の保存と再生を行う
type AudioSink interface {
	Save(record conversation.Record) (string, error)
	Play(ctx context.Context, path string) error
}

// FileAudioSink は回答音声をディレクトリに書き出し、設定があれば外部プレイヤーで再生する
type FileAudioSink struct {
	dir    string
	player string // 例: "mpg123 -q"。空なら再生しない
}

// NewFileAudioSink は新しい FileAudioSink を作成する
func NewFileAudioSink(dir, player string) *FileAudioSink {
	return &FileAudioSink{dir: dir, player: strings.TrimSpace(player)}
}

// Save は <dir>/<recordID>.<format> に音声を書き出してパスを返す
func (s *FileAudioSink) Save(record conversation.Record) (string, error) {
	if record.Audio.IsEmpty() {
		return "", speech.ErrEmptyAudio
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	format := record.Audio.Format
	if format == "" {
		format = speech.FormatMP3
	}
	path := filepath.Join(s.dir, record.ID.String()+"."+format)
	if err := os.WriteFile(path, record.Audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return path, nil
}

// CanPlay はプレイヤーが設定されているかを返す
func (s *FileAudioSink) CanPlay() bool {
	return s.player != ""
}

// Play はプレイヤーコマンドの末尾にファイルパスを付けて実行する
func (s *FileAudioSink) Play(ctx context.Context, path string) error {
	if s.player == "" {
		return nil
	}
	fields := strings.Fields(s.player)
	args := append(fields[1:], path)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio player failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
