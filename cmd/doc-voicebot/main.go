package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/doc-voicebot/internal/app/cli"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "collection",
		Usage: "コレクション名（省略時は VECTOR_COLLECTION）",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "doc-voicebot",
		Usage: "PDF 文書に音声で質問できる RAG ボイスボット",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "PDF を取り込みコレクションを置き換える",
				Flags: []cli.Flag{
					envFlag(),
					collectionFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "PDF ファイルパス",
						Required: true,
					},
				},
				Action: appcli.IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "取り込んだ文書に質問する",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					envFlag(),
					collectionFlag(),
					&cli.StringFlag{
						Name:  "speak",
						Usage: "回答音声の出力先（mp3）",
					},
				},
				Action: appcli.AskAction,
			},
			{
				Name:  "voice",
				Usage: "音声ファイルで質問し、回答音声を書き出す",
				Flags: []cli.Flag{
					envFlag(),
					collectionFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "音声ファイルパス（wav/mp3/m4a など）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "回答音声の出力先（省略時は AUDIO_OUTPUT_DIR/answer.mp3）",
					},
				},
				Action: appcli.VoiceAction,
			},
			{
				Name:  "chat",
				Usage: "チャット画面を起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "起動時に取り込む PDF ファイルパス",
					},
					&cli.BoolFlag{
						Name:  "play",
						Usage: "回答音声を AUDIO_PLAYER で再生",
					},
				},
				Action: appcli.ChatAction,
			},
			{
				Name:   "migrate",
				Usage:  "pgvector のスキーマを作成",
				Flags:  []cli.Flag{envFlag()},
				Action: appcli.MigrateAction,
			},
			{
				Name:  "collection",
				Usage: "コレクション管理コマンド（pgvector）",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "コレクション一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.CollectionListAction,
					},
					{
						Name:  "show",
						Usage: "コレクションのチャンクを表示",
						Flags: []cli.Flag{
							envFlag(),
							collectionFlag(),
							&cli.IntFlag{
								Name:  "width",
								Usage: "本文の最大表示文字数（0は全文）",
								Value: 120,
							},
						},
						Action: appcli.CollectionShowAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
