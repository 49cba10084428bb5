package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/doc-voicebot/internal/core/ask"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature は回答生成のデフォルト温度
	DefaultTemperature = 0.3

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrRateLimited はレート制限に達した場合のエラー
	ErrRateLimited = errors.New("rate limited by OpenAI API")

	// ErrNoChoices は回答候補が返されなかった場合のエラー
	ErrNoChoices = errors.New("no completion choices returned")
)

type clientOptions struct {
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithBaseURL は接続先のベースURLを上書きする（互換APIやテスト用）
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithModel は回答生成モデルを上書きする
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		o.model = model
	}
}

// WithTemperature は回答生成の温度を上書きする
func WithTemperature(temperature float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = temperature
	}
}

// WithTimeout はAPIコールのタイムアウトを設定する
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithHTTPClient は内部で使う http.Client を差し替える
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		timeout:     DefaultTimeout,
	}
}

// requestOptions は共通の接続オプションを組み立てる
func (o clientOptions) requestOptions(apiKey string) []option.RequestOption {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}
	return reqOpts
}

// Client は OpenAI Chat Completions API を使用した回答生成クライアント
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	// 回答生成は1回だけ試行し、失敗はそのまま呼び出し元に返す
	reqOpts := append(options.requestOptions(apiKey), option.WithMaxRetries(0))

	return &Client{
		client:      openai.NewClient(reqOpts...),
		model:       options.model,
		temperature: options.temperature,
		timeout:     options.timeout,
	}, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Temperature は温度を返す
func (c *Client) Temperature() float64 {
	return c.temperature
}

// GenerateCompletion はプロンプトを1件のユーザーメッセージとして送り、回答本文を返す
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isRateLimitError(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	return completion.Choices[0].Message.Content, nil
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}

// インターフェース実装の確認
var _ ask.LLMClient = (*Client)(nil)
