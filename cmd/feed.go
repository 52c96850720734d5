package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shouni/go-web-harvest/pkg/scraper"
)

// フィードURLを保持するフラグ変数
var feedURL string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードの記事URLを順に処理し、コンテンツを抽出します",
	Long:  `指定されたURLからRSSまたはAtomフィードを取得し、記事のリンクをフィード内の順序でスクレイピングします。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		processedURL, err := ensureScheme(feedURL)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		tool, err := scraper.New(GetGlobalConfig())
		if err != nil {
			return fmt.Errorf("スクレイパーの初期化エラー: %w", err)
		}

		ctx, stop := newRunContext(cmd.Context())
		defer stop()

		log.Info().Str("feed", processedURL).Msg("フィードを処理します")
		report, err := tool.ScrapeFeed(ctx, processedURL)
		if err != nil {
			return fmt.Errorf("フィード処理パイプラインの実行エラー: %w", err)
		}
		return printReport(cmd.OutOrStdout(), report, Flags.JSON)
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	_ = feedCmd.MarkFlagRequired("url")
}
