package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shouni/go-web-harvest/pkg/scraper"
)

// コマンドラインフラグ変数を定義
var (
	inputURLs string // --urls フラグで受け取るカンマ区切りのURLリスト
)

// runScrapePipeline は、逐次スクレイピングを実行するメインロジックです。
// Ctrl+C でキャンセルされた場合も、それまでに採用された結果を出力します。
func runScrapePipeline(ctx context.Context, w io.Writer, urls []string) error {
	tool, err := scraper.New(GetGlobalConfig())
	if err != nil {
		return fmt.Errorf("スクレイパーの初期化エラー: %w", err)
	}

	ctx, stop := newRunContext(ctx)
	defer stop()

	log.Info().
		Int("urls", len(urls)).
		Int("max_pages", tool.Config().MaxPages).
		Msg("スクレイピングを開始します")

	report := tool.ScrapeDetailed(ctx, urls)
	return printReport(w, report, Flags.JSON)
}

// readURLs は標準入力からURLを一行ずつ読み込みます。
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		urls = append(urls, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
	}
	return urls, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "複数のURLを順に処理し、コンテンツを抽出します",
	Long:  `--urls フラグでカンマ区切りのURLリストを受け取るか、標準入力からURLを一行ずつ読み込み、ページ数の上限に達するまで順に抽出します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []string
		if inputURLs != "" {
			raw = strings.Split(inputURLs, ",")
		} else {
			log.Info().Msg("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
			var err error
			raw, err = readURLs(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}

		urls, err := normalizeURLs(raw)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}
		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		return runScrapePipeline(cmd.Context(), cmd.OutOrStdout(), urls)
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"抽出対象のカンマ区切りURLリスト (例: url1,url2,url3)")
}
