// Package gtts は Google 翻訳の読み上げエンドポイントを使った音声合成クライアント
package gtts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/jinford/doc-voicebot/internal/core/speech"
)

const (
	// DefaultLanguage は読み上げ言語のデフォルト
	DefaultLanguage = "en"
	// DefaultTLD はアクセントを決めるドメイン（com.au はオーストラリア英語）
	DefaultTLD = "com.au"
	// DefaultTimeout はHTTPリクエストのタイムアウト
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries は一時的な失敗時の再試行回数
	DefaultMaxRetries = 2

	rpcID     = "jQ1olc"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	// ErrNoText は読み上げ可能な文字が無い場合のエラー
	ErrNoText = errors.New("no text to speak")
	// ErrNoAudio はレスポンスに音声が含まれていない場合のエラー
	ErrNoAudio = errors.New("no audio in response")
)

// Client は gTTS 互換の音声合成クライアント
type Client struct {
	httpClient *http.Client
	endpoint   string
	language   string
	slow       bool
	maxRetries uint64
	retryWait  time.Duration
	logger     *slog.Logger
}

// Option は Client のオプション設定
type Option func(*Client)

// WithLanguage は読み上げ言語を設定する
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithTLD はアクセントを決めるトップレベルドメインを設定する
func WithTLD(tld string) Option {
	return func(c *Client) {
		c.endpoint = endpointForTLD(tld)
	}
}

// WithEndpoint はリクエスト先URLを直接指定する（テスト用）
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithSlow はゆっくり読み上げる
func WithSlow(slow bool) Option {
	return func(c *Client) {
		c.slow = slow
	}
}

// WithHTTPClient は http.Client を差し替える
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetry は再試行回数と初回待機時間を設定する
func WithRetry(maxRetries uint64, wait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryWait = wait
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient は新しい Client を作成する
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   endpointForTLD(DefaultTLD),
		language:   DefaultLanguage,
		maxRetries: DefaultMaxRetries,
		retryWait:  500 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func endpointForTLD(tld string) string {
	if tld == "" {
		tld = DefaultTLD
	}
	return fmt.Sprintf("https://translate.google.%s/_/TranslateWebserverUi/data/batchexecute", tld)
}

// Synthesize はテキストをMP3音声に変換する。
// 長い文は区切って順にリクエストし、得られたMP3を連結する
func (c *Client) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return speech.Audio{}, ErrNoText
	}

	var buf bytes.Buffer
	for i, tok := range tokens {
		part, err := c.synthesizeToken(ctx, tok)
		if err != nil {
			return speech.Audio{}, fmt.Errorf("failed to synthesize part %d/%d: %w", i+1, len(tokens), err)
		}
		buf.Write(part)
	}

	c.logger.Debug("音声を合成しました",
		"parts", len(tokens),
		"bytes", buf.Len(),
	)

	if buf.Len() == 0 {
		return speech.Audio{}, speech.ErrEmptyAudio
	}
	return speech.Audio{Data: buf.Bytes(), Format: speech.FormatMP3}, nil
}

func (c *Client) synthesizeToken(ctx context.Context, token string) ([]byte, error) {
	body, err := c.requestBody(token)
	if err != nil {
		return nil, err
	}

	var audio []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", "http://translate.google.com/")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("speech endpoint returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("speech endpoint returned %d", resp.StatusCode))
		}

		audio, err = parseAudio(payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("音声合成を再試行します", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx), notify); err != nil {
		return nil, err
	}
	return audio, nil
}

// requestBody は batchexecute 形式のフォームを組み立てる
func (c *Client) requestBody(token string) (string, error) {
	var speed any
	if c.slow {
		speed = true
	}

	inner, err := json.Marshal([]any{token, c.language, speed, "null"})
	if err != nil {
		return "", err
	}
	outer, err := json.Marshal([]any{[]any{[]any{rpcID, string(inner), nil, "generic"}}})
	if err != nil {
		return "", err
	}

	return "f.req=" + url.QueryEscape(string(outer)) + "&", nil
}

// parseAudio は batchexecute のレスポンスから base64 の音声を取り出す
func parseAudio(payload []byte) ([]byte, error) {
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, rpcID) || !gjson.Valid(line) {
			continue
		}

		var encoded string
		gjson.Parse(line).ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("0").String() != "wrb.fr" || entry.Get("1").String() != rpcID {
				return true
			}
			encoded = gjson.Parse(entry.Get("2").String()).Get("0").String()
			return false
		})

		if encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio: %w", err)
		}
		return data, nil
	}
	return nil, ErrNoAudio
}

// インターフェース実装の確認
var _ speech.Synthesizer = (*Client)(nil)
