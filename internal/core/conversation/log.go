package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

// Log はセッション中の会話記録を追加順に保持する
type Log struct {
	mu          sync.RWMutex
	records     []Record
	synthesizer speech.Synthesizer
	maxTurns    int // 0は無制限
	now         func() time.Time
	logger      *slog.Logger
}

// LogOption は Log のオプション
type LogOption func(*Log)

// WithMaxTurns は保持する最大件数を設定する。超えた分は古いものから捨てる
func WithMaxTurns(n int) LogOption {
	return func(l *Log) {
		l.maxTurns = n
	}
}

// WithLogLogger は Log にロガーを設定する
func WithLogLogger(logger *slog.Logger) LogOption {
	return func(l *Log) {
		l.logger = logger
	}
}

// WithClock は作成時刻の取得関数を差し替える
func WithClock(now func() time.Time) LogOption {
	return func(l *Log) {
		l.now = now
	}
}

// NewLog は新しい Log を作成する
func NewLog(synthesizer speech.Synthesizer, opts ...LogOption) *Log {
	l := &Log{
		synthesizer: synthesizer,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.maxTurns < 0 {
		l.maxTurns = 0
	}
	return l
}

// Append は回答の音声を合成して記録を追加する。
// 合成に失敗した場合は何も追加せずにエラーを返す
func (l *Log) Append(ctx context.Context, query, answer string, meta ingestion.FileMeta) (*Record, error) {
	audio, err := l.synthesizer.Synthesize(ctx, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize answer audio: %w", err)
	}
	if audio.IsEmpty() {
		return nil, speech.ErrEmptyAudio
	}

	record := Record{
		ID:        uuid.New(),
		Query:     query,
		Answer:    answer,
		Audio:     audio,
		Document:  meta,
		CreatedAt: l.now(),
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	evicted := 0
	if l.maxTurns > 0 && len(l.records) > l.maxTurns {
		evicted = len(l.records) - l.maxTurns
		// 古い記録を捨てる（基底配列を使い回さない）
		l.records = append([]Record(nil), l.records[evicted:]...)
	}
	size := len(l.records)
	l.mu.Unlock()

	l.logger.Debug("会話記録を追加しました",
		"recordID", record.ID.String(),
		"audioBytes", len(audio.Data),
		"records", size,
		"evicted", evicted,
	)

	return &record, nil
}

// All は全ての記録を追加順に返す（コピー）
func (l *Log) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len は記録数を返す
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear は全ての記録を破棄する
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

// MaxTurns は保持上限を返す（0は無制限）
func (l *Log) MaxTurns() int {
	return l.maxTurns
}
