package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreask "github.com/jinford/doc-voicebot/internal/core/ask"
	"github.com/jinford/doc-voicebot/internal/core/conversation"
	coreingestion "github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/ingestion/chunk"
	coresearch "github.com/jinford/doc-voicebot/internal/core/search"
	"github.com/jinford/doc-voicebot/internal/core/session"
	"github.com/jinford/doc-voicebot/internal/core/speech"
	"github.com/jinford/doc-voicebot/internal/infra/gtts"
	"github.com/jinford/doc-voicebot/internal/infra/memory"
	"github.com/jinford/doc-voicebot/internal/infra/openai"
	"github.com/jinford/doc-voicebot/internal/infra/pdf"
	"github.com/jinford/doc-voicebot/internal/infra/postgres"
	"github.com/jinford/doc-voicebot/internal/infra/redis"
	"github.com/jinford/doc-voicebot/internal/platform/config"
	"github.com/jinford/doc-voicebot/internal/platform/database"
	"github.com/jinford/doc-voicebot/internal/platform/logger"
)

// VectorStore はコレクションの書き込みと検索を両方提供するストア
type VectorStore interface {
	coreingestion.CollectionWriter
	coresearch.Repository
}

// Embedder は取り込みと検索の両方で使う Embedder
type Embedder interface {
	coreingestion.Embedder
	coresearch.Embedder
}

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	IngestService  *coreingestion.IngestService
	SearchService  *coresearch.SearchService
	AskService     *coreask.AskService
	SessionService *session.Service
	Synthesizer    speech.Synthesizer
	Transcriber    speech.Transcriber
	Store          VectorStore

	cfg      *config.Config
	logger   *slog.Logger // component=app
	network  *slog.Logger // component=network
	database *database.Database // pgvector バックエンドの場合のみ
	redis    *redis.Store       // redis バックエンドの場合のみ
}

type containerOptions struct {
	logger      *slog.Logger
	embedder    Embedder
	llmClient   coreask.LLMClient
	extractor   coreingestion.TextExtractor
	synthesizer speech.Synthesizer
	transcriber speech.Transcriber
	store       VectorStore
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はベースロガーを差し替える。コンポーネントごとの子ロガーはここから作る
func WithContainerLogger(base *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = base
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client coreask.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerExtractor はテキスト抽出器を差し替える
func WithContainerExtractor(extractor coreingestion.TextExtractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerSynthesizer は音声合成を差し替える
func WithContainerSynthesizer(synthesizer speech.Synthesizer) ContainerOption {
	return func(opts *containerOptions) {
		opts.synthesizer = synthesizer
	}
}

// WithContainerTranscriber は音声認識を差し替える
func WithContainerTranscriber(transcriber speech.Transcriber) ContainerOption {
	return func(opts *containerOptions) {
		opts.transcriber = transcriber
	}
}

// WithContainerStore はベクトルストアを差し替える。指定時は設定のバックエンドに接続しない
func WithContainerStore(store VectorStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{
		cfg:     cfg,
		logger:  logger.Component(options.logger, logger.ComponentApp),
		network: logger.Component(options.logger, logger.ComponentNetwork),
	}

	store := options.store
	if store == nil {
		var err error
		store, err = c.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	c.Store = store

	if err := c.wire(options); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// openStore は設定されたバックエンドのベクトルストアに接続する
func (c *ServiceContainer) openStore(ctx context.Context) (VectorStore, error) {
	cfg := c.cfg

	switch cfg.VectorStore.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil

	case config.BackendRedis:
		store, err := redis.NewStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.OpenAI.EmbeddingDimension, c.network)
		if err != nil {
			return nil, fmt.Errorf("Redis 初期化に失敗しました: %w", err)
		}
		c.redis = store
		return store, nil

	default:
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		if err := database.Migrate(ctx, db, cfg.OpenAI.EmbeddingDimension); err != nil {
			db.Close()
			return nil, fmt.Errorf("スキーマ作成に失敗しました: %w", err)
		}
		c.database = db
		return postgres.NewCollectionRepository(db), nil
	}
}

func (c *ServiceContainer) wire(options containerOptions) error {
	cfg := c.cfg
	timeout := time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second
	clientOpts := []openai.ClientOption{
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithTimeout(timeout),
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		e := openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbeddingClientOptions(clientOpts...),
		)
		c.network.Info("Embedding クライアントを初期化しました",
			"model", e.ModelName(),
			"dimension", e.Dimension(),
		)
		embedder = e
	}

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		client, err := openai.NewClient(cfg.OpenAI.APIKey, append(clientOpts,
			openai.WithModel(cfg.OpenAI.LLMModel),
			openai.WithTemperature(cfg.OpenAI.Temperature),
		)...)
		if err != nil {
			return fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		c.network.Info("LLM クライアントを初期化しました",
			"model", client.ModelName(),
			"temperature", client.Temperature(),
		)
		llmClient = client
	}

	// Splitter / TokenCounter
	splitter, err := chunk.NewRecursiveSplitter(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		return fmt.Errorf("Splitter 初期化に失敗しました: %w", err)
	}
	tokenCounter, err := chunk.NewTokenCounter()
	if err != nil {
		return fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
	}

	extractor := options.extractor
	if extractor == nil {
		extractor = pdf.NewExtractor(c.logger)
	}

	synthesizer := options.synthesizer
	if synthesizer == nil {
		synthesizer, err = c.newSynthesizer(clientOpts)
		if err != nil {
			return err
		}
	}

	transcriber := options.transcriber
	if transcriber == nil {
		t, err := openai.NewTranscriber(cfg.OpenAI.APIKey,
			openai.WithAudioModel(cfg.OpenAI.TranscriptionModel),
			openai.WithLanguage(cfg.Speech.Language),
			openai.WithAudioClientOptions(clientOpts...),
		)
		if err != nil {
			return fmt.Errorf("音声認識の初期化に失敗しました: %w", err)
		}
		transcriber = t
	}

	c.IngestService = coreingestion.NewIngestService(
		extractor,
		splitter,
		embedder,
		c.Store,
		coreingestion.WithIngestTokenCounter(tokenCounter),
		coreingestion.WithIngestLogger(c.logger),
	)
	c.SearchService = coresearch.NewSearchService(c.Store, embedder, coresearch.WithSearchLogger(c.logger))
	c.AskService = coreask.NewAskService(
		c.SearchService,
		llmClient,
		coreask.WithAskTopK(cfg.Retrieval.TopK),
		coreask.WithAskLogger(c.logger),
	)
	c.SessionService = session.NewService(
		c.IngestService,
		c.AskService,
		session.WithTranscriber(transcriber),
		session.WithServiceLogger(c.logger),
		session.WithUserLogger(logger.Component(options.logger, logger.ComponentUser)),
		session.WithBotLogger(logger.Component(options.logger, logger.ComponentBot)),
	)
	c.Synthesizer = synthesizer
	c.Transcriber = transcriber

	return nil
}

func (c *ServiceContainer) newSynthesizer(clientOpts []openai.ClientOption) (speech.Synthesizer, error) {
	cfg := c.cfg
	if cfg.Speech.Provider == config.SpeechProviderOpenAI {
		s, err := openai.NewSynthesizer(cfg.OpenAI.APIKey,
			openai.WithAudioModel(cfg.OpenAI.TTSModel),
			openai.WithVoice(cfg.OpenAI.TTSVoice),
			openai.WithAudioClientOptions(clientOpts...),
		)
		if err != nil {
			return nil, fmt.Errorf("音声合成の初期化に失敗しました: %w", err)
		}
		return s, nil
	}

	return gtts.NewClient(
		gtts.WithLanguage(cfg.Speech.Language),
		gtts.WithTLD(cfg.Speech.TLD),
		gtts.WithSlow(cfg.Speech.Slow),
		gtts.WithLogger(c.network),
	), nil
}

// NewSession は会話ログ付きの新しいセッションを作成する
func (c *ServiceContainer) NewSession() *session.Session {
	log := conversation.NewLog(
		c.Synthesizer,
		conversation.WithMaxTurns(c.cfg.Conversation.MaxTurns),
		conversation.WithLogLogger(c.logger),
	)
	return session.New(session.Options{
		BaseCollection: c.cfg.VectorStore.Collection,
		PerSession:     c.cfg.VectorStore.PerSession,
	}, log)
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	if c.database != nil {
		c.database.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger().Warn("Redis 接続のクローズに失敗しました", "error", err)
		}
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。pgvector 以外のバックエンドでは nil
func (c *ServiceContainer) Database() *database.Database {
	if c == nil {
		return nil
	}
	return c.database
}
