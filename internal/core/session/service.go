package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/doc-voicebot/internal/core/ask"
	"github.com/jinford/doc-voicebot/internal/core/conversation"
	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

var (
	// ErrNoUpload は処理対象の文書がステージされていない場合のエラー
	ErrNoUpload = errors.New("no document has been uploaded")
	// ErrNoConversationLog はセッションに会話ログが設定されていない場合のエラー
	ErrNoConversationLog = errors.New("session has no conversation log")
)

// Ingester は文書取り込みのインターフェース
type Ingester interface {
	Ingest(ctx context.Context, collection string, data []byte, filename string) (*ingestion.IngestResult, error)
}

// Answerer は質問応答のインターフェース
type Answerer interface {
	Answer(ctx context.Context, collection, query string) mo.Result[string]
}

// Turn は1回の質問の結果を表す
type Turn struct {
	Query  string
	Result mo.Result[string]
	Record *conversation.Record // 失敗した回答の場合は nil
}

// Text は表示用の回答文字列を返す
func (t *Turn) Text() string {
	return ask.AnswerText(t.Result)
}

// Service はセッションに対するユーザー操作を処理する
type Service struct {
	ingester    Ingester
	answerer    Answerer
	transcriber speech.Transcriber // オプショナル
	logger      *slog.Logger
	userLogger  *slog.Logger // ユーザー入力の記録
	botLogger   *slog.Logger // ボット応答の記録
}

// ServiceOption は Service のオプション
type ServiceOption func(*Service)

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithUserLogger はユーザー入力を記録するロガーを設定する
func WithUserLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.userLogger = logger
	}
}

// WithBotLogger はボット応答を記録するロガーを設定する
func WithBotLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.botLogger = logger
	}
}

// WithTranscriber は音声入力用の Transcriber を設定する
func WithTranscriber(t speech.Transcriber) ServiceOption {
	return func(s *Service) {
		s.transcriber = t
	}
}

// NewService は新しい Service を作成する
func NewService(ingester Ingester, answerer Answerer, opts ...ServiceOption) *Service {
	svc := &Service{
		ingester: ingester,
		answerer: answerer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.userLogger == nil {
		svc.userLogger = svc.logger
	}
	if svc.botLogger == nil {
		svc.botLogger = svc.logger
	}
	return svc
}

// Stage はアップロードされた文書をセッションに保持する（まだ取り込まない）
func (s *Service) Stage(sess *Session, data []byte, filename string) error {
	if len(data) == 0 {
		return ingestion.ErrEmptyDocument
	}
	sess.stage(Upload{Name: filename, Data: data})

	s.logger.Info("文書をステージしました",
		"sessionID", sess.ID().String(),
		"fileName", filename,
		"size", len(data),
	)
	return nil
}

// ProcessDocument はステージ中の文書を取り込む。
// 失敗した場合はセッションのフラグを変更しない
func (s *Service) ProcessDocument(ctx context.Context, sess *Session) (*ingestion.FileMeta, error) {
	upload, ok := sess.Upload().Get()
	if !ok {
		return nil, ErrNoUpload
	}

	result, err := s.ingester.Ingest(ctx, sess.Collection(), upload.Data, upload.Name)
	if err != nil {
		s.logger.Error("文書の処理に失敗しました",
			"sessionID", sess.ID().String(),
			"fileName", upload.Name,
			"error", err,
		)
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	sess.markProcessed(result.File)

	s.logger.Info("文書をベクトルデータベースに保存しました",
		"sessionID", sess.ID().String(),
		"collection", result.Collection,
		"chunks", result.Chunks,
	)

	meta := result.File
	return &meta, nil
}

// Ask は質問に回答し、成功した場合は回答音声とともに会話ログに追加する。
// 回答の失敗は Turn.Result で返し、音声合成の失敗はエラーとして返す
func (s *Service) Ask(ctx context.Context, sess *Session, query string) (*Turn, error) {
	turn := &Turn{Query: query}

	if sess.Log() == nil {
		return nil, ErrNoConversationLog
	}

	s.userLogger.Info("質問を受け付けました",
		"sessionID", sess.ID().String(),
		"queryLength", len([]rune(query)),
	)

	if !sess.DataStored() {
		turn.Result = mo.Err[string](ask.ErrCollectionNotReady)
		return turn, nil
	}

	turn.Result = s.answerer.Answer(ctx, sess.Collection(), query)
	answer, err := turn.Result.Get()
	if err != nil {
		// 失敗したやり取りは会話ログに残さない
		s.logger.Warn("回答を生成できませんでした",
			"sessionID", sess.ID().String(),
			"error", err,
		)
		return turn, nil
	}

	meta := sess.Document().OrEmpty()
	record, err := sess.Log().Append(ctx, query, answer, meta)
	if err != nil {
		return nil, err
	}
	turn.Record = record

	s.botLogger.Info("回答しました",
		"sessionID", sess.ID().String(),
		"recordID", record.ID.String(),
		"answerLength", len([]rune(answer)),
	)

	return turn, nil
}

// Voice は音声を文字起こしして質問として処理する。
// 何も認識できなかった場合は (nil, nil) を返す
func (s *Service) Voice(ctx context.Context, sess *Session, audio []byte, filename string) (*Turn, error) {
	if s.transcriber == nil {
		return nil, fmt.Errorf("speech transcription is not configured")
	}
	if len(audio) == 0 {
		return nil, nil
	}

	captureKey := sess.CaptureKey()
	text, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe %s: %w", captureKey, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Info("音声から文字を認識できませんでした", "captureKey", captureKey)
		return nil, nil
	}

	// 次の入力に新しい識別子を割り当てる
	sess.nextRecording()

	s.userLogger.Info("音声を文字起こししました",
		"captureKey", captureKey,
		"textLength", len(text),
	)

	return s.Ask(ctx, sess, text)
}
