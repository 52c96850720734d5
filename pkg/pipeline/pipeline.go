package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/shouni/go-web-harvest/pkg/fetcher"
	"github.com/shouni/go-web-harvest/pkg/recency"
	"github.com/shouni/go-web-harvest/pkg/retry"
	"github.com/shouni/go-web-harvest/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DI)
// ----------------------------------------------------------------------

// Fetcher は URL から生のマークアップを取得する機能のインターフェースです。
type Fetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

// Extractor は生のマークアップを ContentRecord に変換する機能のインターフェースです。
type Extractor interface {
	Extract(rawMarkup string) types.ContentRecord
}

// Controller は Fetcher -> Extractor -> RecencyFilter を URL リストの順に逐次実行し、
// ページ数の上限 (page budget) に達した時点で停止します。
type Controller struct {
	fetcher   Fetcher
	extractor Extractor
	policy    recency.Policy
	maxPages  int

	limiter *rate.Limiter
	now     func() time.Time
	logger  zerolog.Logger
}

// Option は Controller の設定を行うための関数型です。
type Option func(*Controller)

// WithRequestsPerSecond は URL 間のリクエスト頻度を制限します。0 以下は無制限です。
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Controller) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithClock は鮮度判定の基準時刻に使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger はログの出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New は Controller を初期化します。
func New(f Fetcher, e Extractor, policy recency.Policy, maxPages int, opts ...Option) *Controller {
	c := &Controller{
		fetcher:   f,
		extractor: e,
		policy:    policy,
		maxPages:  maxPages,
		now:       time.Now,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run は URL リストを処理し、採用された ContentRecord を URL の処理順に返します。
func (c *Controller) Run(ctx context.Context, urls []string) []types.ContentRecord {
	return c.RunDetailed(ctx, urls).Records
}

// RunDetailed は Run と同じ処理を行い、URL ごとの処理結果も返します。
// 1つの URL の失敗で実行全体が中止されることはありません。
// 実行を打ち切るのはページ数の上限、URL リストの終端、コンテキストの終了のみです。
func (c *Controller) RunDetailed(ctx context.Context, urls []string) types.RunReport {
	var report types.RunReport

	for _, url := range urls {
		if report.PagesProcessed >= c.maxPages {
			c.logger.Debug().Int("pages", report.PagesProcessed).Msg("ページ数の上限に達したため処理を終了します")
			break
		}
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				report.Err = err
				break
			}
		}

		outcome := c.processURL(ctx, url, &report)
		report.Outcomes = append(report.Outcomes, outcome)
		c.logger.Debug().
			Str("url", url).
			Str("status", string(outcome.Status)).
			Int("attempts", outcome.Attempts).
			Msg("URLの処理が完了しました")

		if outcome.Status == types.OutcomeCanceled {
			report.Err = outcome.Err
			break
		}
	}

	return report
}

// processURL は1つの URL を取得・抽出・判定し、採用した場合は report に追加します。
func (c *Controller) processURL(ctx context.Context, url string, report *types.RunReport) types.URLOutcome {
	res := c.fetcher.Fetch(ctx, url)
	outcome := types.URLOutcome{
		URL:      url,
		Attempts: res.Attempts,
		Err:      res.Err,
	}

	switch res.Outcome {
	case retry.Succeeded:
	case retry.Canceled:
		outcome.Status = types.OutcomeCanceled
		return outcome
	case retry.PermanentFailure:
		outcome.Status = types.OutcomeNotFound
		return outcome
	default:
		outcome.Status = types.OutcomeExhausted
		return outcome
	}

	// 空の本文はページとして扱わない
	if res.Body == "" {
		outcome.Status = types.OutcomeEmpty
		return outcome
	}

	record := c.extractor.Extract(res.Body)
	if !c.policy.IsFresh(record, c.now()) {
		outcome.Status = types.OutcomeStale
		return outcome
	}

	report.Records = append(report.Records, record)
	report.PagesProcessed++
	outcome.Status = types.OutcomeAccepted
	return outcome
}
