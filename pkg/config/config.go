package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shouni/go-web-harvest/pkg/types"
)

const (
	// サイトからのブロックを避けるためのUser-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

	DefaultRetryAttempts = 3
	DefaultTimeout       = 30 * time.Second
	DefaultDaysToScrape  = 7
	DefaultMaxPages      = 10
	DefaultRateLimitStep = 5 * time.Second
)

// Default は推奨されるデフォルト設定を返します。
// 証明書検証は既定で無効です。リスクは Config.VerifyCertificates を参照してください。
func Default() types.Config {
	return types.Config{
		UserAgent:          DefaultUserAgent,
		RetryAttempts:      DefaultRetryAttempts,
		Timeout:            DefaultTimeout,
		DaysToScrape:       DefaultDaysToScrape,
		MaxPages:           DefaultMaxPages,
		VerifyCertificates: false,
		RateLimitStep:      DefaultRateLimitStep,
		RecencyMode:        types.RecencyExtracted,
		ExtractMode:        types.ExtractFull,
	}
}

// Load は YAML ファイルを読み込み、Default() の値に上書きして返します。
// ファイルに記載されていない項目はデフォルト値のままです。
func Load(path string) (types.Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("設定ファイルのパースに失敗しました (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate は実行に必要な項目がすべて妥当な値であるかを検証します。
func Validate(cfg types.Config) error {
	var errs []error

	if cfg.UserAgent == "" {
		errs = append(errs, errors.New("userAgent は必須です"))
	}
	if cfg.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retryAttempts は1以上である必要があります: %d", cfg.RetryAttempts))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout は正の値である必要があります: %s", cfg.Timeout))
	}
	if cfg.DaysToScrape < 0 {
		errs = append(errs, fmt.Errorf("daysToScrape は0以上である必要があります: %d", cfg.DaysToScrape))
	}
	if cfg.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("maxPages は0以上である必要があります: %d", cfg.MaxPages))
	}
	if cfg.RateLimitStep < 0 {
		errs = append(errs, fmt.Errorf("rateLimitStep は0以上である必要があります: %s", cfg.RateLimitStep))
	}
	if cfg.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requestsPerSecond は0以上である必要があります: %v", cfg.RequestsPerSecond))
	}

	switch cfg.RecencyMode {
	case types.RecencyExtracted, types.RecencyPublished:
	default:
		errs = append(errs, fmt.Errorf("recencyMode が不正です: %q", cfg.RecencyMode))
	}
	switch cfg.ExtractMode {
	case types.ExtractFull, types.ExtractMain:
	default:
		errs = append(errs, fmt.Errorf("extractMode が不正です: %q", cfg.ExtractMode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}
