package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shouni/go-web-harvest/pkg/httpclient"
	"github.com/shouni/go-web-harvest/pkg/retry"
)

// ----------------------------------------------------------------------
// 依存性の定義
// ----------------------------------------------------------------------

// Getter は1回の HTTP GET (1往復) を実行する機能のインターフェースです。
// *httpclient.Session はこのインターフェースを満たします。
type Getter interface {
	Get(ctx context.Context, url string) (string, error)
}

// ----------------------------------------------------------------------
// 失敗の分類
// ----------------------------------------------------------------------

// FailureKind は1回の試行で発生した失敗の種類です。
type FailureKind int

const (
	FailureNone        FailureKind = iota
	FailureNotFound                // HTTP 404: 永続的。再試行しない
	FailureRateLimited             // HTTP 429: 一時的。線形バックオフ後に再試行
	FailureTLS                     // TLS ネゴシエーション失敗: 一時的。即座に再試行
	FailureGeneric                 // その他すべて: 試行回数が尽きるまで即座に再試行
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not_found"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTLS:
		return "secure_transport"
	case FailureGeneric:
		return "generic"
	}
	return "unknown"
}

// Classify はエラーを失敗の種類と、リトライ状態機械への指示に変換します。
func Classify(err error) (FailureKind, retry.Decision) {
	if err == nil {
		return FailureNone, retry.Success
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return FailureNotFound, retry.PermanentFail
		case http.StatusTooManyRequests:
			return FailureRateLimited, retry.RetryableWait
		}
		return FailureGeneric, retry.RetryableImmediate
	}

	if IsTLSError(err) {
		return FailureTLS, retry.RetryableImmediate
	}
	return FailureGeneric, retry.RetryableImmediate
}

// IsTLSError はエラーが TLS のネゴシエーションまたは証明書検証の失敗であるかを判断します。
func IsTLSError(err error) bool {
	if err == nil {
		return false
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

// ----------------------------------------------------------------------
// Fetcher
// ----------------------------------------------------------------------

// Result は1つの URL に対する取得結果です。
// Outcome が retry.Succeeded の場合のみ Body が有効です。
type Result struct {
	retry.Result
	Body string
	// LastFailure は最後に発生した失敗の種類です。
	LastFailure FailureKind
}

// OK は本文を取得できたかどうかを返します。
func (r Result) OK() bool {
	return r.Outcome == retry.Succeeded
}

// Fetcher は試行回数に上限のあるリトライポリシーで URL を取得します。
type Fetcher struct {
	getter Getter
	cfg    retry.Config
	logger zerolog.Logger
}

// Option は Fetcher の設定を行うための関数型です。
type Option func(*Fetcher)

// WithLogger はログの出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithSleeper はバックオフの待機処理を差し替えます。
func WithSleeper(s retry.Sleeper) Option {
	return func(f *Fetcher) {
		f.cfg.Sleeper = s
	}
}

// New は新しい Fetcher を生成します。
// attempts は初回を含む最大試行回数、step は HTTP 429 時の線形バックオフの単位です。
func New(getter Getter, attempts int, step time.Duration, opts ...Option) *Fetcher {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.Step = step

	f := &Fetcher{
		getter: getter,
		cfg:    cfg,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch は URL を取得します。状態遷移は以下の通りです。
//
//	Pending -> Success | PermanentFailure (404) | ExhaustedRetries | Canceled
//
// Pending は 429 (待機あり)、TLS 失敗、その他の失敗 (待機なし) で自己ループします。
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	var (
		body        string
		lastFailure FailureKind
	)

	op := func(ctx context.Context, attempt int) (retry.Decision, error) {
		b, err := f.getter.Get(ctx, url)
		if err == nil {
			body = b
			return retry.Success, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return retry.PermanentFail, ctxErr
		}

		kind, decision := Classify(err)
		lastFailure = kind
		f.logFailure(url, attempt, kind, err)
		return decision, err
	}

	res := retry.Run(ctx, f.cfg, op)
	if res.Outcome == retry.PermanentFailure && ctx.Err() != nil {
		res.Outcome = retry.Canceled
	}

	return Result{
		Result:      res,
		Body:        body,
		LastFailure: lastFailure,
	}
}

// logFailure は失敗の種類に応じた重要度でログを出力します。
func (f *Fetcher) logFailure(url string, attempt int, kind FailureKind, err error) {
	switch kind {
	case FailureNotFound:
		f.logger.Error().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("ページが見つかりません")
	case FailureRateLimited:
		if attempt+1 >= f.cfg.MaxAttempts {
			f.logger.Info().Str("url", url).Int("attempt", attempt+1).Msg("レート制限を受けました。試行回数の上限に達しました")
			return
		}
		f.logger.Info().
			Str("url", url).
			Int("attempt", attempt+1).
			Dur("wait", time.Duration(attempt+1)*f.cfg.Step).
			Msg("レート制限を受けました。待機してからリトライします")
	case FailureTLS:
		f.logger.Warn().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("SSLエラーが発生しました。リトライします")
	default:
		f.logger.Error().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("スクレイピング中にエラーが発生しました")
	}
}
