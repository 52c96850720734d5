package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 30 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// StatusError.Error() に含めるボディの最大長
	maxErrorBodyLength = 1024
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError はステータスコード 400 以上のレスポンスを示すカスタムエラー型です。
// リトライすべきかどうかの判定は呼び出し側 (fetcher) の責務です。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("HTTPステータスコードエラー: %d, ボディなし", e.StatusCode)
	}
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength] + "..."
	}
	return fmt.Sprintf("HTTPステータスコードエラー: %d, ボディ: %s", e.StatusCode, body)
}

// Session は1回の実行 (run) の間共有される HTTP セッションです。
// Cookie ストアと User-Agent ヘッダーはすべてのリクエストで共有されます。
// Cookie の状態を共有するため、複数の実行から同時に利用することは想定していません。
type Session struct {
	httpClient Doer
	userAgent  string
}

// Options はセッションの設定です。
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// VerifyCertificates が false の場合、このセッションの Transport に限り証明書検証を無効化します。
	VerifyCertificates bool
}

// ClientOption は Session の設定を行うための関数型です。
type ClientOption func(*Session)

// WithHTTPClient はカスタムの Doer を設定します。主にテストで利用します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(s *Session) {
		s.httpClient = doer
	}
}

// New は新しい Session を生成します。
func New(opts Options, options ...ClientOption) (*Session, error) {
	s := &Session{
		userAgent: opts.UserAgent,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.httpClient != nil {
		return s, nil
	}

	client, err := newHTTPClient(opts)
	if err != nil {
		return nil, err
	}
	s.httpClient = client
	return s, nil
}

// newHTTPClient は Cookie ジャーと TLS 設定を持つ *http.Client を生成します。
func newHTTPClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("Cookieジャーの初期化に失敗しました: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !opts.VerifyCertificates {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // セッション単位で明示的に無効化
	}

	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
	}, nil
}

// addCommonHeaders は共通のHTTPヘッダーを設定します。
func (s *Session) addCommonHeaders(req *http.Request) {
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
}

// Get は1回の HTTP GET (1往復) を実行し、レスポンスボディを文字列で返します。
// ステータスコードが 400 以上の場合は *StatusError を返します。
// 3xx はクライアントによってリダイレクトが追跡されます。
func (s *Session) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	s.addCommonHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	}
	defer resp.Body.Close()

	body, readErr := readLimited(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if readErr != nil {
		return "", readErr
	}
	return string(body), nil
}

// readLimited はボディを MaxBodySize まで読み込みます。上限を超えた場合はエラーを返します。
func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodySize+1))
	if err != nil {
		return body, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(body)) > MaxBodySize {
		return body[:MaxBodySize], fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", MaxBodySize)
	}
	return body, nil
}
