package fetcher

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-harvest/pkg/httpclient"
	"github.com/shouni/go-web-harvest/pkg/retry"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// scriptedGetter は試行ごとにあらかじめ決めた応答を順に返します。
type scriptedGetter struct {
	responses []response
	calls     int
}

type response struct {
	body string
	err  error
}

func (g *scriptedGetter) Get(ctx context.Context, url string) (string, error) {
	r := g.responses[len(g.responses)-1]
	if g.calls < len(g.responses) {
		r = g.responses[g.calls]
	}
	g.calls++
	return r.body, r.err
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func statusErr(code int) error {
	return &httpclient.StatusError{StatusCode: code}
}

func tlsErr() error {
	return &url.Error{Op: "Get", URL: "https://a.test", Err: x509.UnknownAuthorityError{}}
}

func newTestFetcher(g Getter, attempts int) (*Fetcher, *recordingSleeper, *bytes.Buffer) {
	var buf bytes.Buffer
	sleeper := &recordingSleeper{}
	f := New(g, attempts, 5*time.Second,
		WithSleeper(sleeper),
		WithLogger(zerolog.New(&buf)),
	)
	return f, sleeper, &buf
}

// ======================================================================
// テスト関数
// ======================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     FailureKind
		decision retry.Decision
	}{
		{"nil", nil, FailureNone, retry.Success},
		{"404", statusErr(http.StatusNotFound), FailureNotFound, retry.PermanentFail},
		{"wrapped 404", fmt.Errorf("fetch: %w", statusErr(http.StatusNotFound)), FailureNotFound, retry.PermanentFail},
		{"429", statusErr(http.StatusTooManyRequests), FailureRateLimited, retry.RetryableWait},
		{"500", statusErr(http.StatusInternalServerError), FailureGeneric, retry.RetryableImmediate},
		{"403", statusErr(http.StatusForbidden), FailureGeneric, retry.RetryableImmediate},
		{"tls", tlsErr(), FailureTLS, retry.RetryableImmediate},
		{"hostname", x509.HostnameError{Host: "a.test"}, FailureTLS, retry.RetryableImmediate},
		{"network", errors.New("connection reset by peer"), FailureGeneric, retry.RetryableImmediate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, decision := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.decision, decision)
		})
	}
}

func TestFetch_SuccessOnFirstAttempt(t *testing.T) {
	g := &scriptedGetter{responses: []response{{body: "<title>T</title>"}}}
	f, sleeper, _ := newTestFetcher(g, 3)

	res := f.Fetch(context.Background(), "http://a.test/ok")

	require.True(t, res.OK())
	assert.Equal(t, "<title>T</title>", res.Body)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, g.calls)
	assert.Empty(t, sleeper.delays)
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	g := &scriptedGetter{responses: []response{{err: statusErr(http.StatusNotFound)}}}
	f, sleeper, logs := newTestFetcher(g, 5)

	res := f.Fetch(context.Background(), "http://a.test/missing")

	assert.False(t, res.OK())
	assert.Equal(t, retry.PermanentFailure, res.Outcome)
	assert.Equal(t, FailureNotFound, res.LastFailure)
	assert.Equal(t, 1, g.calls, "404 must not be retried")
	assert.Empty(t, sleeper.delays)
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "http://a.test/missing")
	assert.Contains(t, logs.String(), `"attempt":1`)
	assert.Contains(t, logs.String(), `"error":"HTTPステータスコードエラー: 404, ボディなし"`)
}

func TestFetch_RateLimitedOnEveryAttempt(t *testing.T) {
	g := &scriptedGetter{responses: []response{{err: statusErr(http.StatusTooManyRequests)}}}
	f, sleeper, _ := newTestFetcher(g, 3)

	res := f.Fetch(context.Background(), "http://a.test/busy")

	assert.False(t, res.OK())
	assert.Equal(t, retry.ExhaustedRetries, res.Outcome)
	assert.Equal(t, FailureRateLimited, res.LastFailure)
	assert.Equal(t, 3, g.calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.delays)
}

func TestFetch_SuccessOnLaterAttempt(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("attempt_%d", k), func(t *testing.T) {
			var responses []response
			for i := 1; i < k; i++ {
				responses = append(responses, response{err: errors.New("timeout")})
			}
			responses = append(responses, response{body: "ok"})
			g := &scriptedGetter{responses: responses}
			f, _, _ := newTestFetcher(g, 4)

			res := f.Fetch(context.Background(), "http://a.test/flaky")

			require.True(t, res.OK())
			assert.Equal(t, k, res.Attempts)
			assert.Equal(t, k, g.calls)
		})
	}
}

func TestFetch_TLSFailureLogsWarningAndRetries(t *testing.T) {
	g := &scriptedGetter{responses: []response{{err: tlsErr()}, {body: "secure"}}}
	f, sleeper, logs := newTestFetcher(g, 3)

	res := f.Fetch(context.Background(), "https://a.test/")

	require.True(t, res.OK())
	assert.Equal(t, 2, g.calls)
	assert.Empty(t, sleeper.delays)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.NotContains(t, logs.String(), `"level":"error"`)
}

func TestFetch_GenericFailureExhausts(t *testing.T) {
	g := &scriptedGetter{responses: []response{{err: errors.New("connection refused")}}}
	f, sleeper, logs := newTestFetcher(g, 3)

	res := f.Fetch(context.Background(), "http://a.test/down")

	assert.False(t, res.OK())
	assert.Equal(t, retry.ExhaustedRetries, res.Outcome)
	assert.Equal(t, 3, g.calls)
	assert.Empty(t, sleeper.delays)
	assert.Equal(t, 3, strings.Count(logs.String(), `"level":"error"`))
}

func TestFetch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &cancelingGetter{cancel: cancel}
	f, _, _ := newTestFetcher(g, 3)

	res := f.Fetch(ctx, "http://a.test/slow")

	assert.False(t, res.OK())
	assert.Equal(t, retry.Canceled, res.Outcome)
	assert.Equal(t, 1, g.calls)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

// cancelingGetter は呼び出し中にコンテキストをキャンセルし、ネットワークエラーを返します。
type cancelingGetter struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancelingGetter) Get(ctx context.Context, url string) (string, error) {
	g.calls++
	g.cancel()
	return "", errors.New("request aborted")
}
