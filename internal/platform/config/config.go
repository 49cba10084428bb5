package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ベクトルストアのバックエンド種別
const (
	BackendPgvector = "pgvector"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// 音声合成プロバイダ種別
const (
	SpeechProviderGTTS   = "gtts"
	SpeechProviderOpenAI = "openai"
)

// ErrOpenAIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrOpenAIKeyNotSet = errors.New("OPENAI_API_KEY is not set")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（pgvectorバックエンド用）
	Database DatabaseConfig

	// OpenAI設定（Embeddings + LLM + 音声）
	OpenAI OpenAIConfig

	// ベクトルストア設定
	VectorStore VectorStoreConfig

	// Redis設定（redisバックエンド用）
	Redis RedisConfig

	// チャンク分割設定
	Chunk ChunkConfig

	// 検索設定
	Retrieval RetrievalConfig

	// 音声設定
	Speech SpeechConfig

	// 会話ログ設定
	Conversation ConversationConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	TranscriptionModel string
	TTSModel           string
	TTSVoice           string
	TimeoutSeconds     int
}

// VectorStoreConfig はベクトルコレクション設定
type VectorStoreConfig struct {
	Backend    string // "pgvector" / "redis" / "memory"
	Collection string
	PerSession bool // セッションごとにコレクションを分ける
}

// RedisConfig はRedis接続設定
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChunkConfig はチャンク分割設定（文字数）
type ChunkConfig struct {
	Size    int
	Overlap int
}

// RetrievalConfig は類似検索設定
type RetrievalConfig struct {
	TopK int
}

// SpeechConfig は音声合成・認識設定
type SpeechConfig struct {
	Provider  string // "gtts" or "openai"
	Language  string
	TLD       string // gTTSのアクセント指定（例: com.au）
	Slow      bool   // gTTSでゆっくり読み上げる
	OutputDir string
	PlayerCmd string
}

// ConversationConfig は会話ログ設定
type ConversationConfig struct {
	MaxTurns int // 0は無制限
}

// LogConfig はログ出力設定
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "voicebot"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "voicebot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.3),
			TranscriptionModel: getEnv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
			TTSModel:           getEnv("OPENAI_TTS_MODEL", "tts-1"),
			TTSVoice:           getEnv("OPENAI_TTS_VOICE", "alloy"),
			TimeoutSeconds:     getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60),
		},
		VectorStore: VectorStoreConfig{
			Backend:    strings.ToLower(getEnv("VECTOR_BACKEND", BackendPgvector)),
			Collection: getEnv("VECTOR_COLLECTION", "xeven_voicebot"),
			PerSession: getEnvAsBool("VECTOR_COLLECTION_PER_SESSION", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Chunk: ChunkConfig{
			Size:    getEnvAsInt("CHUNK_SIZE", 300),
			Overlap: getEnvAsInt("CHUNK_OVERLAP", 40),
		},
		Retrieval: RetrievalConfig{
			TopK: getEnvAsInt("RETRIEVAL_TOP_K", 4),
		},
		Speech: SpeechConfig{
			Provider:  strings.ToLower(getEnv("SPEECH_PROVIDER", SpeechProviderGTTS)),
			Language:  getEnv("DEFAULT_LANGUAGE", "en"),
			TLD:       getEnv("TTS_TLD", "com.au"),
			Slow:      getEnvAsBool("TTS_SLOW", false),
			OutputDir: getEnv("AUDIO_OUTPUT_DIR", "./audio"),
			PlayerCmd: getEnv("AUDIO_PLAYER", ""),
		},
		Conversation: ConversationConfig{
			MaxTurns: getEnvAsInt("CONVERSATION_MAX_TURNS", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", "doc-voicebot.log"),
		},
	}

	return cfg, nil
}

// Validate は設定値の整合性を検証します
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrOpenAIKeyNotSet
	}
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive: %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE): %d", c.Chunk.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive: %d", c.Retrieval.TopK)
	}
	if c.Conversation.MaxTurns < 0 {
		return fmt.Errorf("CONVERSATION_MAX_TURNS must not be negative: %d", c.Conversation.MaxTurns)
	}

	switch c.VectorStore.Backend {
	case BackendPgvector, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND: %q", c.VectorStore.Backend)
	}

	switch c.Speech.Provider {
	case SpeechProviderGTTS, SpeechProviderOpenAI:
	default:
		return fmt.Errorf("unknown SPEECH_PROVIDER: %q", c.Speech.Provider)
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
