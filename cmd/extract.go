package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shouni/go-web-harvest/pkg/scraper"
	"github.com/shouni/go-web-harvest/pkg/types"
)

var rawURL string

// runExtractionPipeline は、1つのURLからコンテンツを抽出します。
// ページ数の上限は1として扱い、取得できなかった場合は処理結果をエラーとして返します。
func runExtractionPipeline(ctx context.Context, url string) (types.RunReport, error) {
	cfg := GetGlobalConfig()
	cfg.MaxPages = 1

	tool, err := scraper.New(cfg)
	if err != nil {
		return types.RunReport{}, fmt.Errorf("スクレイパーの初期化エラー: %w", err)
	}

	overallTimeout := extractionTimeout(cfg)
	log.Info().Str("url", url).Dur("overall_timeout", overallTimeout).Msg("処理対象URL")
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	report := tool.ScrapeDetailed(ctx, []string{url})
	if len(report.Records) == 0 {
		if report.Err != nil {
			return report, fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", url, report.Err)
		}
		o := report.Outcomes[0]
		if o.Err != nil {
			return report, fmt.Errorf("コンテンツ抽出エラー (URL: %s, 状態: %s): %w", url, o.Status, o.Err)
		}
		return report, fmt.Errorf("コンテンツ抽出エラー (URL: %s, 状態: %s)", url, o.Status)
	}
	return report, nil
}

// extractionTimeout は1つのURLに対する全体タイムアウトです。
// すべての試行がタイムアウトし、429 の待機をすべて行った場合の合計時間に相当します。
func extractionTimeout(cfg types.Config) time.Duration {
	n := time.Duration(cfg.RetryAttempts)
	return cfg.Timeout*n + cfg.RateLimitStep*n*(n-1)/2
}

// promptURL は標準入力から1行読み込みます。
func promptURL(in io.Reader, out io.Writer) (string, error) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "処理するURLを入力してください: ")

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("標準入力の読み取りエラー: %w", err)
		}
		return "", fmt.Errorf("URLが入力されていません")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

var extractCmd = &cobra.Command{
	Use:   "extract [URL]",
	Short: "指定されたURLまたは標準入力からWebコンテンツのテキストを取得します",
	Long:  `指定されたURLまたは標準入力からWebコンテンツのタイトルとテキストを取得します。`,
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		urlToProcess := rawURL
		if urlToProcess == "" && len(args) == 1 {
			urlToProcess = args[0]
		}
		if urlToProcess == "" {
			log.Info().Msg("URLが指定されていないため、標準入力からURLを読み込みます...")
			var err error
			urlToProcess, err = promptURL(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}

		processedURL, err := ensureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		ctx, stop := newRunContext(cmd.Context())
		defer stop()

		report, err := runExtractionPipeline(ctx, processedURL)
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), report, Flags.JSON)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&rawURL, "url", "u", "", "抽出対象のURL")
}
