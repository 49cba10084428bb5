package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	coreask "github.com/jinford/doc-voicebot/internal/core/ask"
)

// VoiceAction は音声ファイルを文字起こしして質問し、回答音声を書き出すコマンドのアクション
func VoiceAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("音声ファイルを読み込めません: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	text, err := appCtx.Container.Transcriber.Transcribe(ctx, audio, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("文字起こしに失敗: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		fmt.Println("音声から文字を認識できませんでした")
		return nil
	}
	fmt.Printf("You: %s\n", text)

	collection := appCtx.collectionName(cmd.String("collection"))
	slog.Info("音声入力で質問します", "collection", collection, "textLength", len(text))

	result := appCtx.Container.AskService.Answer(ctx, collection, text)
	fmt.Printf("Bot: %s\n", coreask.AnswerText(result))

	answer, err := result.Get()
	if err != nil {
		return nil
	}

	out := cmd.String("out")
	if out == "" {
		out = filepath.Join(appCtx.Config.Speech.OutputDir, "answer.mp3")
	}
	return speak(ctx, appCtx, answer, out)
}
