package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/doc-voicebot/internal/core/speech"
)

const (
	// DefaultTranscriptionModel は音声認識のデフォルトモデル
	DefaultTranscriptionModel = "whisper-1"
	// DefaultSpeechModel は音声合成のデフォルトモデル
	DefaultSpeechModel = "tts-1"
	// DefaultSpeechVoice は音声合成のデフォルト話者
	DefaultSpeechVoice = "alloy"
)

type audioOptions struct {
	clientOptions
	model    string
	voice    string
	language string
}

// AudioOption は Transcriber / Synthesizer のオプション設定
type AudioOption func(*audioOptions)

// WithAudioModel はモデル名を上書きする
func WithAudioModel(model string) AudioOption {
	return func(o *audioOptions) {
		o.model = model
	}
}

// WithVoice は音声合成の話者を上書きする
func WithVoice(voice string) AudioOption {
	return func(o *audioOptions) {
		o.voice = voice
	}
}

// WithLanguage は音声認識の言語ヒント（ISO-639-1）を設定する
func WithLanguage(language string) AudioOption {
	return func(o *audioOptions) {
		o.language = language
	}
}

// WithAudioClientOptions は接続オプション（ベースURLなど）を適用する
func WithAudioClientOptions(opts ...ClientOption) AudioOption {
	return func(o *audioOptions) {
		for _, opt := range opts {
			opt(&o.clientOptions)
		}
	}
}

func newAudioOptions(defaultModel string, opts []AudioOption) audioOptions {
	options := audioOptions{
		model: defaultModel,
		voice: DefaultSpeechVoice,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Transcriber は Whisper API を使用した音声認識
type Transcriber struct {
	client   openai.Client
	model    string
	language string
}

// NewTranscriber は新しい Transcriber を作成する
func NewTranscriber(apiKey string, opts ...AudioOption) (*Transcriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := newAudioOptions(DefaultTranscriptionModel, opts)
	return &Transcriber{
		client:   openai.NewClient(options.requestOptions(apiKey)...),
		model:    options.model,
		language: options.language,
	}, nil
}

// Transcribe は音声データを文字起こしする。無音の場合は空文字列を返す
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if filename == "" {
		filename = "speech." + speech.FormatWAV
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), filepath.Base(filename), speech.MIMEType(format)),
		Model: openai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Synthesizer は OpenAI TTS API を使用した音声合成
type Synthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// NewSynthesizer は新しい Synthesizer を作成する
func NewSynthesizer(apiKey string, opts ...AudioOption) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := newAudioOptions(DefaultSpeechModel, opts)
	return &Synthesizer{
		client: openai.NewClient(options.requestOptions(apiKey)...),
		model:  options.model,
		voice:  options.voice,
	}, nil
}

// Synthesize はテキストをMP3音声に変換する
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return speech.Audio{}, fmt.Errorf("no text to synthesize")
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return speech.Audio{}, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	if len(data) == 0 {
		return speech.Audio{}, speech.ErrEmptyAudio
	}

	return speech.Audio{Data: data, Format: speech.FormatMP3}, nil
}

// インターフェース実装の確認
var (
	_ speech.Transcriber = (*Transcriber)(nil)
	_ speech.Synthesizer = (*Synthesizer)(nil)
)
