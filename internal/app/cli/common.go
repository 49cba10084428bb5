package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jinford/doc-voicebot/internal/platform/config"
	"github.com/jinford/doc-voicebot/internal/platform/container"
	"github.com/jinford/doc-voicebot/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer

	logFile io.Closer
}

type appOptions struct {
	logToFile bool
}

// AppOption は AppContext 作成時のオプション
type AppOption func(*appOptions)

// WithFileLogging はログを LOG_FILE に出力する（チャット画面で端末を汚さないため）
func WithFileLogging() AppOption {
	return func(o *appOptions) {
		o.logToFile = true
	}
}

// NewAppContext は設定ファイルを読み込み、ストアに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string, opts ...AppOption) (*AppContext, error) {
	var options appOptions
	for _, opt := range opts {
		opt(&options)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	logCfg := logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}
	var logFile io.WriteCloser
	if options.logToFile {
		logFile, err = logger.NewFileWriter(cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("ログファイルを開けません: %w", err)
		}
		logCfg.Output = logFile
	}
	appLogger := logger.New(logCfg)

	cont, err := container.NewContainer(ctx, cfg,
		container.WithContainerLogger(appLogger),
	)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
		logFile:   logFile,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
	if ac.logFile != nil {
		_ = ac.logFile.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// collectionName はフラグ指定があればそれを、なければ設定のコレクション名を返す
func (ac *AppContext) collectionName(flag string) string {
	if flag != "" {
		return flag
	}
	return ac.Config.VectorStore.Collection
}
