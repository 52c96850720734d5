package types

import "time"

// ----------------------------------------------------------------------
// 実行設定 (RequestTarget のうち URL 以外の部分)
// ----------------------------------------------------------------------

// RecencyMode は鮮度判定に使うタイムスタンプの種類です。
type RecencyMode string

const (
	// RecencyExtracted は抽出時刻 (extractedAt) で判定します。既定の挙動です。
	RecencyExtracted RecencyMode = "extracted"
	// RecencyPublished はページのメタデータから得た公開日時で判定します。
	RecencyPublished RecencyMode = "published"
)

// ExtractMode は本文テキストの抽出範囲です。
type ExtractMode string

const (
	// ExtractFull は表示対象となる全テキストノードを結合します。既定の挙動です。
	ExtractFull ExtractMode = "full"
	// ExtractMain は article/main などのメインコンテンツ領域のみを対象にします。
	ExtractMain ExtractMode = "main"
)

// Config は1回の実行 (run) の間、変更されない設定を保持します。
type Config struct {
	UserAgent     string        `yaml:"userAgent" json:"user_agent"`
	RetryAttempts int           `yaml:"retryAttempts" json:"retry_attempts"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	DaysToScrape  int           `yaml:"daysToScrape" json:"days_to_scrape"`
	MaxPages      int           `yaml:"maxPages" json:"max_pages"`

	// VerifyCertificates が false の場合、TLS 証明書の検証を行いません。
	// セッション単位の設定であり、プロセス全体には影響しません。
	// 中間者攻撃を検知できなくなるため、信頼できるネットワーク以外での無効化は推奨しません。
	VerifyCertificates bool `yaml:"verifyCertificates" json:"verify_certificates"`

	// RateLimitStep は HTTP 429 を受けたときの線形バックオフの単位です (待機 = (試行番号+1) * RateLimitStep)。
	RateLimitStep time.Duration `yaml:"rateLimitStep" json:"rate_limit_step"`
	// RequestsPerSecond は URL 間のリクエスト間隔を制限します。0 は無制限です。
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requests_per_second"`

	RecencyMode RecencyMode `yaml:"recencyMode" json:"recency_mode"`
	ExtractMode ExtractMode `yaml:"extractMode" json:"extract_mode"`
}

// ----------------------------------------------------------------------
// 抽出結果
// ----------------------------------------------------------------------

// ContentRecord は1つの RawPage から抽出された構造化コンテンツです。
// ExtractedAt は RFC3339 (ナノ秒) 形式の文字列で、オーケストレーターへそのまま渡されます。
type ContentRecord struct {
	Text        string `json:"text"`
	Title       string `json:"title"`
	ExtractedAt string `json:"extracted_at"`

	// PublishedAt はメタデータに公開日時が記載されていた場合のみ設定されます (書式はページ依存)。
	PublishedAt string `json:"published_at,omitempty"`
}

// ----------------------------------------------------------------------
// URL ごとの処理結果 (観測用)
// ----------------------------------------------------------------------

// OutcomeStatus は1つの URL の最終的な処理状態です。
type OutcomeStatus string

const (
	OutcomeAccepted  OutcomeStatus = "accepted"
	OutcomeNotFound  OutcomeStatus = "not_found"
	OutcomeExhausted OutcomeStatus = "exhausted"
	OutcomeStale     OutcomeStatus = "stale"
	OutcomeEmpty     OutcomeStatus = "empty" // 取得は成功したが本文が空
	OutcomeCanceled  OutcomeStatus = "canceled"
)

// URLOutcome は、特定の URL の処理結果と、処理中に発生した最後のエラーを保持します。
type URLOutcome struct {
	URL      string
	Status   OutcomeStatus
	Attempts int
	Err      error
}

// RunReport は1回の実行の詳細な結果です。
// Records は外部に返される結果列そのもので、URL の処理順に並びます。
type RunReport struct {
	Records        []ContentRecord
	Outcomes       []URLOutcome
	PagesProcessed int
	// Err はコンテキストのキャンセルで実行が打ち切られた場合のみ設定されます。
	Err error
}
