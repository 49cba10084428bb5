package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-voicebot/internal/interface/tui"
)

// ChatAction は対話型のチャット画面を起動するコマンドのアクション
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile, WithFileLogging())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.SessionService
	sess := appCtx.Container.NewSession()

	// --file 指定時は起動前に取り込んでおく
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("ファイルを読み込めません: %w", err)
		}
		if err := svc.Stage(sess, data, filepath.Base(path)); err != nil {
			return err
		}
		if _, err := svc.ProcessDocument(ctx, sess); err != nil {
			return err
		}
	}

	sink := tui.NewFileAudioSink(appCtx.Config.Speech.OutputDir, appCtx.Config.Speech.PlayerCmd)
	model := tui.New(ctx, svc, sess,
		tui.WithAudioSink(sink),
		tui.WithAutoPlay(cmd.Bool("play") && sink.CanPlay()),
	)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("チャット画面の実行に失敗: %w", err)
	}
	return nil
}
