package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// リトライ関連の定数
	DefaultMaxAttempts = 3 // 初回を含む最大試行回数

	// HTTP 429 を受けたときの線形バックオフの単位
	DefaultStep = 5 * time.Second
)

// Decision は1回の試行の結果を、次に何をすべきかという観点で分類したものです。
type Decision int

const (
	Success            Decision = iota // 成功。残りの試行は行わない
	PermanentFail                      // 永続的な失敗。即座に中止する
	RetryableWait                      // 一時的な失敗。バックオフ分待機してから再試行する
	RetryableImmediate                 // 一時的な失敗。待機せずに再試行する
)

func (d Decision) String() string {
	switch d {
	case Success:
		return "success"
	case PermanentFail:
		return "permanent_fail"
	case RetryableWait:
		return "retryable_wait"
	case RetryableImmediate:
		return "retryable_immediate"
	}
	return "unknown"
}

// Outcome はリトライループ全体の最終状態です。
type Outcome int

const (
	Succeeded        Outcome = iota
	PermanentFailure         // PermanentFail により中止
	ExhaustedRetries         // 試行回数を使い切った
	Canceled                 // コンテキストのキャンセル/タイムアウト
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case PermanentFailure:
		return "permanent_failure"
	case ExhaustedRetries:
		return "exhausted_retries"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Operation は1回の試行を表す関数です。attempt は0始まりの試行番号です。
// 取得した値はクロージャ経由で呼び出し元に渡します。
type Operation func(ctx context.Context, attempt int) (Decision, error)

// Result はリトライループの判別可能な結果です。
type Result struct {
	Outcome  Outcome
	Attempts int   // 実際に行った試行回数
	Err      error // 最後に発生したエラー (Succeeded の場合は nil)
}

// Sleeper は待機処理を抽象化します。テストでは待機時間を記録する実装に差し替えます。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc は関数を Sleeper として扱うためのアダプターです。
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// ContextSleeper は d だけ待機します。待機中にコンテキストが終了した場合は即座に ctx.Err() を返します。
var ContextSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxAttempts int
	// Step は線形バックオフの単位です。 (n回目の試行の後の待機 = n * Step)
	Step    time.Duration
	Sleeper Sleeper
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Step:        DefaultStep,
		Sleeper:     ContextSleeper,
	}
}

// LinearBackOff は呼び出しごとに Step ずつ待機時間が伸びる backoff.BackOff の実装です。
type LinearBackOff struct {
	Step time.Duration
	n    int
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.Step
}

func (b *LinearBackOff) Reset() { b.n = 0 }

// newBackOffPolicy は試行回数の上限を組み込んだバックオフを生成します。
// 試行ごとに1回 NextBackOff を呼び出すため、最後の試行の後は backoff.Stop が返ります。
func newBackOffPolicy(cfg Config) backoff.BackOff {
	tries := cfg.MaxAttempts - 1
	if tries < 0 {
		tries = 0
	}
	b := backoff.WithMaxRetries(&LinearBackOff{Step: cfg.Step}, uint64(tries))
	b.Reset()
	return b
}

// Run は op を最大 cfg.MaxAttempts 回実行する状態機械です。
//
//	Pending -> Success | PermanentFailure | ExhaustedRetries | Canceled
//
// RetryableWait の場合のみ待機し、待機時間は試行番号 (0始まり) を k として (k+1) * Step です。
// 最後の試行の後は再試行がないため待機しません。
// コンテキストは各試行の前と待機中に確認されます。
func Run(ctx context.Context, cfg Config, op Operation) Result {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = ContextSleeper
	}
	bo := newBackOffPolicy(cfg)

	var lastErr error
	attempts := 0

	for attempts < cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: Canceled, Attempts: attempts, Err: err}
		}

		decision, err := op(ctx, attempts)
		attempts++
		delay := bo.NextBackOff()

		switch decision {
		case Success:
			return Result{Outcome: Succeeded, Attempts: attempts}
		case PermanentFail:
			return Result{Outcome: PermanentFailure, Attempts: attempts, Err: err}
		case RetryableWait:
			lastErr = err
			// maxTries が0の WithMaxRetries は Stop を返さないため、試行回数でも判定する
			if delay == backoff.Stop || attempts >= cfg.MaxAttempts {
				return Result{Outcome: ExhaustedRetries, Attempts: attempts, Err: lastErr}
			}
			if sleepErr := cfg.Sleeper.Sleep(ctx, delay); sleepErr != nil {
				return Result{Outcome: Canceled, Attempts: attempts, Err: sleepErr}
			}
		default:
			lastErr = err
		}
	}

	return Result{Outcome: ExhaustedRetries, Attempts: attempts, Err: lastErr}
}
