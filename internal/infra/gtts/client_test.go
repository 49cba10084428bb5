package gtts

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jinford/doc-voicebot/internal/core/speech"
)

// batchResponse は batchexecute 形式のレスポンスを組み立てる
func batchResponse(audio []byte) string {
	inner := fmt.Sprintf(`[\"%s\"]`, base64.StdEncoding.EncodeToString(audio))
	line := fmt.Sprintf(`[["wrb.fr","jQ1olc","%s",null,null,null,"generic"],["di",48]]`, inner)
	return ")]}'\n\n" + fmt.Sprint(len(line)) + "\n" + line + "\n25\n[[\"e\",4,null,null,160]]\n"
}

func newTestClient(endpoint string, opts ...Option) *Client {
	base := []Option{
		WithEndpoint(endpoint),
		WithRetry(2, time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewClient(append(base, opts...)...)
}

func TestTokenize(t *testing.T) {
	t.Run("splits on punctuation", func(t *testing.T) {
		tokens := Tokenize("Hello there, how are you? I am fine. Version 3.5 is out!")
		assert.Equal(t, []string{"Hello there,", "how are you?", "I am fine.", "Version 3.5 is out!"}, tokens)
	})

	t.Run("long sentence fits the limit", func(t *testing.T) {
		text := strings.Repeat("word ", 60)
		tokens := Tokenize(text)
		require.Greater(t, len(tokens), 1)
		for _, tok := range tokens {
			assert.LessOrEqual(t, utf8.RuneCountInString(tok), MaxTokenLength)
			assert.NotEmpty(t, tok)
		}
		assert.Equal(t, strings.TrimSpace(text), strings.Join(tokens, " "))
	})

	t.Run("no whitespace is cut hard", func(t *testing.T) {
		tokens := Tokenize(strings.Repeat("a", 250))
		require.Len(t, tokens, 3)
		assert.Len(t, tokens[0], 100)
		assert.Len(t, tokens[2], 50)
	})

	t.Run("punctuation only", func(t *testing.T) {
		assert.Empty(t, Tokenize(" ... , ! "))
	})
}

func TestClient_Synthesize(t *testing.T) {
	var mu sync.Mutex
	var spoken []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		freq := r.PostForm.Get("f.req")
		require.NotEmpty(t, freq)

		inner := gjson.Get(freq, "0.0.1").String()
		text := gjson.Get(inner, "0").String()
		assert.Equal(t, "en", gjson.Get(inner, "1").String())

		mu.Lock()
		spoken = append(spoken, text)
		mu.Unlock()

		_, _ = io.WriteString(w, batchResponse([]byte("mp3<"+text+">")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	audio, err := client.Synthesize(context.Background(), "The capital of France is Paris. It is lovely!")
	require.NoError(t, err)

	assert.Equal(t, speech.FormatMP3, audio.Format)
	assert.Equal(t, "mp3<The capital of France is Paris.>mp3<It is lovely!>", string(audio.Data))
	assert.Equal(t, []string{"The capital of France is Paris.", "It is lovely!"}, spoken)
}

func TestClient_SynthesizeRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, batchResponse([]byte("ok")))
	}))
	defer server.Close()

	audio, err := newTestClient(server.URL).Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(audio.Data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_SynthesizeFailures(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Synthesize(context.Background(), "hello")
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("response without audio", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, ")]}'\n\n[[\"e\",4,null,null,160]]\n")
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Synthesize(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrNoAudio)
	})

	t.Run("nothing to speak", func(t *testing.T) {
		_, err := newTestClient("http://127.0.0.1:0").Synthesize(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrNoText)
	})
}

func TestClient_RequestBody(t *testing.T) {
	client := NewClient(WithLanguage("fr"), WithSlow(true))
	body, err := client.requestBody("Bonjour")
	require.NoError(t, err)

	values, err := url.ParseQuery(body)
	require.NoError(t, err)
	freq := values.Get("f.req")

	assert.Equal(t, "jQ1olc", gjson.Get(freq, "0.0.0").String())
	inner := gjson.Get(freq, "0.0.1").String()
	assert.Equal(t, "Bonjour", gjson.Get(inner, "0").String())
	assert.Equal(t, "fr", gjson.Get(inner, "1").String())
	assert.True(t, gjson.Get(inner, "2").Bool())
}

func TestWithTLD(t *testing.T) {
	client := NewClient(WithTLD("co.uk"))
	assert.Equal(t, "https://translate.google.co.uk/_/TranslateWebserverUi/data/batchexecute", client.endpoint)
}
