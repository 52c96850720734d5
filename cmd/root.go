package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-web-harvest/pkg/config"
	"github.com/shouni/go-web-harvest/pkg/types"
)

// --- グローバル定数 ---

const (
	appName = "web-harvest"
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigFile         string  // --config YAML設定ファイル
	TimeoutSec         int     // --timeout タイムアウト (秒)
	RetryAttempts      int     // --retry-attempts 初回を含む試行回数
	MaxPages           int     // --max-pages 採用するページ数の上限
	DaysToScrape       int     // --days 鮮度判定の遡り日数
	UserAgent          string  // --user-agent
	VerifyCertificates bool    // --verify-certs TLS証明書を検証する
	RequestsPerSecond  float64 // --rps URL間のリクエスト頻度の上限
	RecencyMode        string  // --recency extracted|published
	ExtractMode        string  // --extract-mode full|main
	JSON               bool    // --json 結果をJSONで出力
}

var Flags AppFlags           // アプリケーション固有フラグにアクセスするためのグローバル変数
var globalConfig types.Config // PreRunE で確定した実行設定

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	defaults := config.Default()
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&Flags.ConfigFile, "config", "", "YAML設定ファイルのパス")
	pf.IntVar(&Flags.TimeoutSec, "timeout", int(defaults.Timeout/time.Second), "HTTPリクエストのタイムアウト時間（秒）")
	pf.IntVar(&Flags.RetryAttempts, "retry-attempts", defaults.RetryAttempts, "URLごとの最大試行回数（初回を含む）")
	pf.IntVar(&Flags.MaxPages, "max-pages", defaults.MaxPages, "取得するページ数の上限")
	pf.IntVar(&Flags.DaysToScrape, "days", defaults.DaysToScrape, "鮮度判定で遡る日数")
	pf.StringVar(&Flags.UserAgent, "user-agent", defaults.UserAgent, "リクエストに付与するUser-Agent")
	pf.BoolVar(&Flags.VerifyCertificates, "verify-certs", defaults.VerifyCertificates, "TLS証明書を検証する（既定では検証しません）")
	pf.Float64Var(&Flags.RequestsPerSecond, "rps", defaults.RequestsPerSecond, "1秒あたりのリクエスト数の上限（0は無制限）")
	pf.StringVar(&Flags.RecencyMode, "recency", string(defaults.RecencyMode), "鮮度判定の基準 (extracted|published)")
	pf.StringVar(&Flags.ExtractMode, "extract-mode", string(defaults.ExtractMode), "本文の抽出範囲 (full|main)")
	pf.BoolVar(&Flags.JSON, "json", false, "結果をJSON形式で出力する")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	setupLogger(clibase.Flags.Verbose)

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	globalConfig = cfg

	log.Debug().
		Dur("timeout", cfg.Timeout).
		Int("retry_attempts", cfg.RetryAttempts).
		Int("max_pages", cfg.MaxPages).
		Int("days", cfg.DaysToScrape).
		Bool("verify_certificates", cfg.VerifyCertificates).
		Msg("実行設定を確定しました")
	return nil
}

// setupLogger は標準エラー出力に人間が読みやすい形式でログを出力するよう設定します。
func setupLogger(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// resolveConfig はデフォルト値、設定ファイル、明示的に指定されたフラグの順に設定を重ね合わせます。
func resolveConfig(cmd *cobra.Command) (types.Config, error) {
	cfg := config.Default()
	if Flags.ConfigFile != "" {
		loaded, err := config.Load(Flags.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("timeout") {
		cfg.Timeout = time.Duration(Flags.TimeoutSec) * time.Second
	}
	if f.Changed("retry-attempts") {
		cfg.RetryAttempts = Flags.RetryAttempts
	}
	if f.Changed("max-pages") {
		cfg.MaxPages = Flags.MaxPages
	}
	if f.Changed("days") {
		cfg.DaysToScrape = Flags.DaysToScrape
	}
	if f.Changed("user-agent") {
		cfg.UserAgent = Flags.UserAgent
	}
	if f.Changed("verify-certs") {
		cfg.VerifyCertificates = Flags.VerifyCertificates
	}
	if f.Changed("rps") {
		cfg.RequestsPerSecond = Flags.RequestsPerSecond
	}
	if f.Changed("recency") {
		cfg.RecencyMode = types.RecencyMode(Flags.RecencyMode)
	}
	if f.Changed("extract-mode") {
		cfg.ExtractMode = types.ExtractMode(Flags.ExtractMode)
	}

	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("フラグの値が不正です: %w", err)
	}
	return cfg, nil
}

// newRunContext は Ctrl+C で終了するコンテキストを返します。
// キャンセル後もそれまでに採用された結果は返されます。
func newRunContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// GetGlobalConfig は、初期化された実行設定を返す関数 (DIの代わり)
func GetGlobalConfig() types.Config {
	return globalConfig
}

// --- エントリポイント ---

// Execute は、ルートコマンドを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		scrapeCmd,
		feedCmd,
		extractCmd,
	)
}
