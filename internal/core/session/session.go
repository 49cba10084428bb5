package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-voicebot/internal/core/conversation"
	"github.com/jinford/doc-voicebot/internal/core/ingestion"
)

// Upload はアップロードされたがまだ処理されていない文書を表す
type Upload struct {
	Name string
	Data []byte
}

// Session は1ユーザーセッションの状態を保持する。
// 表示層が所有し、各操作に引数として渡す
type Session struct {
	mu sync.RWMutex

	id           uuid.UUID
	collection   string
	upload       mo.Option[Upload]
	document     mo.Option[ingestion.FileMeta]
	processed    bool
	dataStored   bool
	recordingKey int
	log          *conversation.Log
}

// Options はセッション生成時の設定
type Options struct {
	// BaseCollection はベースとなるコレクション名
	BaseCollection string
	// PerSession が true の場合、コレクション名にセッションIDを付与する
	PerSession bool
}

// New は新しいセッションを作成する
func New(opts Options, log *conversation.Log) *Session {
	id := uuid.New()
	return &Session{
		id:         id,
		collection: CollectionName(opts.BaseCollection, id, opts.PerSession),
		log:        log,
	}
}

// CollectionName はセッションが使うコレクション名を返す
func CollectionName(base string, id uuid.UUID, perSession bool) string {
	if !perSession {
		return base
	}
	return fmt.Sprintf("%s_%s", base, strings.ReplaceAll(id.String(), "-", ""))
}

// ID はセッションIDを返す
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Collection はセッションのコレクション名を返す
func (s *Session) Collection() string {
	return s.collection
}

// Log は会話ログを返す
func (s *Session) Log() *conversation.Log {
	return s.log
}

// Upload は未処理のアップロードを返す
func (s *Session) Upload() mo.Option[Upload] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upload
}

// Document は処理済みの文書メタデータを返す
func (s *Session) Document() mo.Option[ingestion.FileMeta] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.document
}

// Processed はステージ中の文書が処理済みかどうかを返す
func (s *Session) Processed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed
}

// DataStored はコレクションに一度でも書き込みが成功したかどうかを返す
func (s *Session) DataStored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataStored
}

// RecordingKey は音声入力の通し番号を返す
func (s *Session) RecordingKey() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordingKey
}

// CaptureKey は現在の音声入力の識別子（STT-<n>）を返す
func (s *Session) CaptureKey() string {
	return fmt.Sprintf("STT-%d", s.RecordingKey())
}

// Reset は会話ログと文書の状態を初期化する。コレクション名は変えない
func (s *Session) Reset() {
	s.mu.Lock()
	s.upload = mo.None[Upload]()
	s.document = mo.None[ingestion.FileMeta]()
	s.processed = false
	s.dataStored = false
	s.mu.Unlock()

	if s.log != nil {
		s.log.Clear()
	}
}

func (s *Session) stage(upload Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upload = mo.Some(upload)
	// 新しい文書は未処理に戻す。以前の文書での質問は引き続き可能
	s.processed = false
}

func (s *Session) markProcessed(meta ingestion.FileMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.document = mo.Some(meta)
	s.processed = true
	s.dataStored = true
}

func (s *Session) nextRecording() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordingKey++
	return s.recordingKey
}
