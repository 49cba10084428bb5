package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// IngestAction はPDFを取り込んでコレクションを置き換えるコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	envFile := cmd.String("env")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルを読み込めません: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	collection := appCtx.collectionName(cmd.String("collection"))
	slog.Info("取り込みを開始", "file", path, "collection", collection)

	result, err := appCtx.Container.IngestService.Ingest(ctx, collection, data, filepath.Base(path))
	if err != nil {
		slog.Error("取り込みに失敗しました", "error", err)
		return err
	}

	fmt.Printf("%s (%s) を %s に保存しました: %d チャンク\n",
		result.File.Name,
		humanize.Bytes(uint64(result.File.Size)),
		result.Collection,
		result.Chunks,
	)
	return nil
}
