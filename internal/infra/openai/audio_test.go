package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-voicebot/internal/core/speech"
)

func TestTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultTranscriptionModel, r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "question.wav", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "RIFF-audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" What is the capital of France? "}`)
	}))
	defer server.Close()

	transcriber, err := NewTranscriber("test-key",
		WithLanguage("en"),
		WithAudioClientOptions(WithBaseURL(server.URL)),
	)
	require.NoError(t, err)

	text, err := transcriber.Transcribe(context.Background(), []byte("RIFF-audio"), "recordings/question.wav")
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", text)
}

func TestTranscriber_EmptyAudio(t *testing.T) {
	transcriber, err := NewTranscriber("test-key")
	require.NoError(t, err)

	text, err := transcriber.Transcribe(context.Background(), nil, "a.wav")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSynthesizer_Synthesize(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &request))

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer server.Close()

	synth, err := NewSynthesizer("test-key",
		WithVoice("nova"),
		WithAudioClientOptions(WithBaseURL(server.URL)),
	)
	require.NoError(t, err)

	audio, err := synth.Synthesize(context.Background(), "Paris.")
	require.NoError(t, err)
	assert.Equal(t, speech.FormatMP3, audio.Format)
	assert.Equal(t, []byte("ID3-mp3-bytes"), audio.Data)

	assert.Equal(t, "Paris.", request["input"])
	assert.Equal(t, "nova", request["voice"])
	assert.Equal(t, DefaultSpeechModel, request["model"])
	assert.Equal(t, "mp3", request["response_format"])
}

func TestSynthesizer_EmptyResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	synth, err := NewSynthesizer("test-key", WithAudioClientOptions(WithBaseURL(server.URL)))
	require.NoError(t, err)

	_, err = synth.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, speech.ErrEmptyAudio)
}
