package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	coreask "github.com/jinford/doc-voicebot/internal/core/ask"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	speakTo := cmd.String("speak")

	// 質問文の取得
	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	collection := appCtx.collectionName(cmd.String("collection"))
	slog.Info("質問応答を開始", "collection", collection, "question", question)

	result := appCtx.Container.AskService.Answer(ctx, collection, question)

	// 失敗しても "Error: ..." を回答として表示する
	fmt.Println(coreask.AnswerText(result))

	answer, err := result.Get()
	if err != nil || speakTo == "" {
		return nil
	}
	return speak(ctx, appCtx, answer, speakTo)
}

// speak は回答を音声合成してファイルに書き出す
func speak(ctx context.Context, appCtx *AppContext, text, path string) error {
	audio, err := appCtx.Container.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("音声合成に失敗: %w", err)
	}
	if audio.IsEmpty() {
		return speech.ErrEmptyAudio
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリを作成できません: %w", err)
		}
	}
	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return fmt.Errorf("音声ファイルを書き込めません: %w", err)
	}

	fmt.Printf("音声を保存しました: %s (%s)\n", path, audio.MIMEType())
	return nil
}
