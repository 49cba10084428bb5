package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-voicebot/internal/infra/postgres"
	"github.com/jinford/doc-voicebot/internal/platform/database"
)

var errPgvectorOnly = errors.New("this command requires VECTOR_BACKEND=pgvector")

// MigrateAction は pgvector のスキーマを作成するコマンドのアクション
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	db := appCtx.Container.Database()
	if db == nil {
		return errPgvectorOnly
	}
	if err := database.Migrate(ctx, db, appCtx.Config.OpenAI.EmbeddingDimension); err != nil {
		return err
	}

	slog.Info("スキーマを作成しました", "dimension", appCtx.Config.OpenAI.EmbeddingDimension)
	fmt.Println("migration completed")
	return nil
}

// CollectionListAction は保存済みのコレクション一覧を表示するコマンドのアクション
func CollectionListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	repo, ok := appCtx.Container.Store.(*postgres.CollectionRepository)
	if !ok {
		return errPgvectorOnly
	}

	summaries, err := repo.ListCollections(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("コレクションはありません")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("COLLECTION", "CHUNKS", "UPDATED")
	for _, s := range summaries {
		table.Append(collectionRow(s)...)
	}
	table.Render()
	return nil
}

// CollectionShowAction はコレクションのチャンクを順に表示するコマンドのアクション
func CollectionShowAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	repo, ok := appCtx.Container.Store.(*postgres.CollectionRepository)
	if !ok {
		return errPgvectorOnly
	}

	collection := appCtx.collectionName(cmd.String("collection"))
	chunks, err := repo.ListChunks(ctx, collection)
	if err != nil {
		return err
	}

	width := int(cmd.Int("width"))
	for _, c := range chunks {
		content := []rune(c.Chunk.Content)
		if width > 0 && len(content) > width {
			content = append(content[:width], '…')
		}
		fmt.Printf("[%d] tokens=%d dim=%d\n%s\n\n", c.Chunk.Ordinal, c.Chunk.Tokens, c.Dimension, string(content))
	}
	fmt.Printf("%d chunks in %s\n", len(chunks), collection)
	return nil
}

// collectionRow はコレクション一覧の1行分を組み立てる
func collectionRow(s postgres.CollectionSummary) []any {
	return []any{s.Name, fmt.Sprintf("%d", s.Chunks), humanize.Time(s.UpdatedAt)}
}
