package scraper

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shouni/go-web-harvest/pkg/config"
	"github.com/shouni/go-web-harvest/pkg/extract"
	"github.com/shouni/go-web-harvest/pkg/feed"
	"github.com/shouni/go-web-harvest/pkg/fetcher"
	"github.com/shouni/go-web-harvest/pkg/httpclient"
	"github.com/shouni/go-web-harvest/pkg/pipeline"
	"github.com/shouni/go-web-harvest/pkg/recency"
	"github.com/shouni/go-web-harvest/pkg/retry"
	"github.com/shouni/go-web-harvest/pkg/types"
)

const (
	// ToolName はエージェントフレームワークに登録する際のツール名です。
	ToolName = "web_scraper"
	// ToolDescription はエージェントに提示するツールの説明です。
	ToolDescription = "Scrapes web content from specified URLs handling various errors"
)

// Scraper はWebコンテンツの抽出機能を提供するインターフェースです。
type Scraper interface {
	Scrape(ctx context.Context, urls []string) []types.ContentRecord
}

// Tool は1回の実行に必要なコンポーネント (セッション、Fetcher、Extractor、鮮度ポリシー) を束ねます。
// HTTP セッションを共有するため、同じ Tool を複数のゴルーチンから同時に使用しないでください。
type Tool struct {
	cfg        types.Config
	fetcher    *fetcher.Fetcher
	controller *pipeline.Controller
}

type options struct {
	httpOptions []httpclient.ClientOption
	logger      zerolog.Logger
	sleeper     retry.Sleeper
}

// Option は Tool の設定を行うための関数型です。
type Option func(*options)

// WithHTTPClient はカスタムの Doer を設定します。
func WithHTTPClient(doer httpclient.Doer) Option {
	return func(o *options) {
		o.httpOptions = append(o.httpOptions, httpclient.WithHTTPClient(doer))
	}
}

// WithLogger はログの出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSleeper はバックオフの待機処理を差し替えます。
func WithSleeper(s retry.Sleeper) Option {
	return func(o *options) {
		o.sleeper = s
	}
}

// New は設定を検証し、Tool を初期化します。
func New(cfg types.Config, opts ...Option) (*Tool, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := options{logger: log.Logger, sleeper: retry.ContextSleeper}
	for _, opt := range opts {
		opt(&o)
	}

	session, err := httpclient.New(httpclient.Options{
		Timeout:            cfg.Timeout,
		UserAgent:          cfg.UserAgent,
		VerifyCertificates: cfg.VerifyCertificates,
	}, o.httpOptions...)
	if err != nil {
		return nil, fmt.Errorf("HTTPセッションの初期化エラー: %w", err)
	}
	if !cfg.VerifyCertificates {
		o.logger.Warn().Msg("TLS証明書の検証が無効です。信頼できないネットワークでは使用しないでください")
	}

	f := fetcher.New(session, cfg.RetryAttempts, cfg.RateLimitStep,
		fetcher.WithLogger(o.logger),
		fetcher.WithSleeper(o.sleeper),
	)
	e := extract.NewExtractor(extract.WithMode(cfg.ExtractMode))
	policy := recency.ForMode(cfg.RecencyMode, cfg.DaysToScrape)

	return &Tool{
		cfg:     cfg,
		fetcher: f,
		controller: pipeline.New(f, e, policy, cfg.MaxPages,
			pipeline.WithRequestsPerSecond(cfg.RequestsPerSecond),
			pipeline.WithLogger(o.logger),
		),
	}, nil
}

// Name はツール名を返します。
func (t *Tool) Name() string { return ToolName }

// Description はツールの説明を返します。
func (t *Tool) Description() string { return ToolDescription }

// Config は実行設定を返します。
func (t *Tool) Config() types.Config { return t.cfg }

// Scrape は URL を順に処理し、採用された ContentRecord を返します。
func (t *Tool) Scrape(ctx context.Context, urls []string) []types.ContentRecord {
	return t.controller.Run(ctx, urls)
}

// ScrapeDetailed は Scrape と同じ処理を行い、URL ごとの処理結果も返します。
func (t *Tool) ScrapeDetailed(ctx context.Context, urls []string) types.RunReport {
	return t.controller.RunDetailed(ctx, urls)
}

// ScrapeFeed はフィードを取得し、記事の URL をフィード内の順序で処理します。
// フィードの取得にも同じセッションとリトライポリシーが使われます。
func (t *Tool) ScrapeFeed(ctx context.Context, feedURL string) (types.RunReport, error) {
	links, err := feed.NewParser(t.fetcher).FetchLinks(ctx, feedURL)
	if err != nil {
		return types.RunReport{}, err
	}
	return t.controller.RunDetailed(ctx, links), nil
}
