package container

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-voicebot/internal/core/speech"
	"github.com/jinford/doc-voicebot/internal/infra/memory"
	"github.com/jinford/doc-voicebot/internal/platform/config"
	"github.com/jinford/doc-voicebot/internal/platform/logger"
)

// 文書中の単語の有無で2次元ベクトルを作る
type keywordEmbedder struct{}

func (keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0.1, 0.1}
	if strings.Contains(lower, "capital") || strings.Contains(lower, "paris") {
		v[0] = 1
	}
	if strings.Contains(lower, "weather") {
		v[1] = 1
	}
	return v
}

func (e keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e keywordEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

func (keywordEmbedder) MaxBatchSize() int { return 10 }

type echoLLM struct {
	prompts []string
}

func (l *echoLLM) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	if strings.Contains(prompt, "Paris") {
		return "Paris", nil
	}
	return "I don't know", nil
}

type textExtractor struct{}

func (textExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return string(data), nil
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	return speech.Audio{Data: []byte("mp3:" + text), Format: speech.FormatMP3}, nil
}

type fakeTranscriber struct{ text string }

func (t fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return t.text, nil
}

func testConfig() *config.Config {
	return &config.Config{
		OpenAI:       config.OpenAIConfig{APIKey: "test-key", EmbeddingDimension: 2},
		VectorStore:  config.VectorStoreConfig{Backend: config.BackendMemory, Collection: "xeven_voicebot"},
		Chunk:        config.ChunkConfig{Size: 300, Overlap: 40},
		Retrieval:    config.RetrievalConfig{TopK: 4},
		Speech:       config.SpeechConfig{Provider: config.SpeechProviderGTTS, Language: "en", TLD: "com.au"},
		Conversation: config.ConversationConfig{MaxTurns: 0},
	}
}

func newTestContainer(t *testing.T, cfg *config.Config, llm *echoLLM) *ServiceContainer {
	t.Helper()
	c, err := NewContainer(context.Background(), cfg,
		WithContainerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithContainerEmbedder(keywordEmbedder{}),
		WithContainerLLMClient(llm),
		WithContainerExtractor(textExtractor{}),
		WithContainerSynthesizer(fakeSynthesizer{}),
		WithContainerTranscriber(fakeTranscriber{text: "What is the capital of France?"}),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestContainer_AskAboutProcessedDocument(t *testing.T) {
	llm := &echoLLM{}
	c := newTestContainer(t, testConfig(), llm)
	ctx := context.Background()

	_, ok := c.Store.(*memory.Store)
	require.True(t, ok)

	sess := c.NewSession()
	assert.Equal(t, "xeven_voicebot", sess.Collection())

	doc := "The capital of France is Paris.\n\nThe weather in Paris is mild."
	require.NoError(t, c.SessionService.Stage(sess, []byte(doc), "france.pdf"))

	meta, err := c.SessionService.ProcessDocument(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "france.pdf", meta.Name)
	assert.True(t, sess.DataStored())

	turn, err := c.SessionService.Ask(ctx, sess, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", turn.Text())
	require.NotNil(t, turn.Record)
	assert.Equal(t, "mp3:Paris", string(turn.Record.Audio.Data))

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "The capital of France is Paris.")
	assert.Equal(t, 1, sess.Log().Len())
}

func TestContainer_ComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewContainer(context.Background(), testConfig(),
		WithContainerLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
		WithContainerEmbedder(keywordEmbedder{}),
		WithContainerLLMClient(&echoLLM{}),
		WithContainerExtractor(textExtractor{}),
		WithContainerSynthesizer(fakeSynthesizer{}),
		WithContainerTranscriber(fakeTranscriber{}),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx := context.Background()
	sess := c.NewSession()
	require.NoError(t, c.SessionService.Stage(sess, []byte("The capital of France is Paris."), "france.pdf"))
	_, err = c.SessionService.ProcessDocument(ctx, sess)
	require.NoError(t, err)
	_, err = c.SessionService.Ask(ctx, sess, "What is the capital of France?")
	require.NoError(t, err)

	components := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if name, ok := entry["component"].(string); ok {
			components[name] = true
		}
	}
	assert.True(t, components[logger.ComponentApp])
	assert.True(t, components[logger.ComponentUser])
	assert.True(t, components[logger.ComponentBot])
}

func TestContainer_AskBeforeProcessing(t *testing.T) {
	llm := &echoLLM{}
	c := newTestContainer(t, testConfig(), llm)

	sess := c.NewSession()
	turn, err := c.SessionService.Ask(context.Background(), sess, "What is the capital of France?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(turn.Text(), "Error: "))
	assert.Empty(t, llm.prompts)
	assert.Equal(t, 0, sess.Log().Len())
}

func TestContainer_VoiceQuestion(t *testing.T) {
	c := newTestContainer(t, testConfig(), &echoLLM{})
	ctx := context.Background()

	sess := c.NewSession()
	require.NoError(t, c.SessionService.Stage(sess, []byte("The capital of France is Paris."), "france.pdf"))
	_, err := c.SessionService.ProcessDocument(ctx, sess)
	require.NoError(t, err)

	turn, err := c.SessionService.Voice(ctx, sess, []byte("RIFF"), "STT-0.wav")
	require.NoError(t, err)
	require.NotNil(t, turn)
	assert.Equal(t, "What is the capital of France?", turn.Query)
	assert.Equal(t, "Paris", turn.Text())
	assert.Equal(t, 1, sess.RecordingKey())
}

func TestContainer_PerSessionCollections(t *testing.T) {
	cfg := testConfig()
	cfg.VectorStore.PerSession = true
	cfg.Conversation.MaxTurns = 1
	c := newTestContainer(t, cfg, &echoLLM{})
	ctx := context.Background()

	first := c.NewSession()
	second := c.NewSession()
	assert.NotEqual(t, first.Collection(), second.Collection())
	assert.True(t, strings.HasPrefix(first.Collection(), "xeven_voicebot_"))
	assert.Equal(t, 1, first.Log().MaxTurns())

	require.NoError(t, c.SessionService.Stage(first, []byte("The capital of France is Paris."), "france.pdf"))
	_, err := c.SessionService.ProcessDocument(ctx, first)
	require.NoError(t, err)

	exists, err := c.Store.CollectionExists(ctx, second.Collection())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestContainer_OpenAISpeechProviderRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.APIKey = ""
	cfg.Speech.Provider = config.SpeechProviderOpenAI

	_, err := NewContainer(context.Background(), cfg,
		WithContainerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithContainerEmbedder(keywordEmbedder{}),
		WithContainerLLMClient(&echoLLM{}),
		WithContainerTranscriber(fakeTranscriber{}),
	)
	assert.Error(t, err)
}
