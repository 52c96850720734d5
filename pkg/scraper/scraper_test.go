package scraper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-harvest/pkg/config"
	"github.com/shouni/go-web-harvest/pkg/types"
)

const page = "<title>T</title><body>Hello</body>"

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

// hitCounter はパスごとのリクエスト回数を数えます。
type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) inc(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = map[string]int{}
	}
	h.hits[path]++
	return h.hits[path]
}

func (h *hitCounter) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newServer(t *testing.T, hits *hitCounter) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.inc(r.URL.Path)
		assert.Equal(t, "harvest-test", r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/ok", "/ok2":
			_, _ = io.WriteString(w, page)
		case "/missing":
			http.NotFound(w, r)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/busy-then-ok":
			if n < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = io.WriteString(w, page)
		case "/feed":
			_, _ = io.WriteString(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>F</title>`+
				`<item><link>http://`+r.Host+`/ok2</link></item>`+
				`<item><link>http://`+r.Host+`/missing</link></item>`+
				`<item><link>http://`+r.Host+`/ok</link></item>`+
				`</channel></rss>`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig() types.Config {
	cfg := config.Default()
	cfg.UserAgent = "harvest-test"
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTool(t *testing.T, cfg types.Config) (*Tool, *recordingSleeper, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	sleeper := &recordingSleeper{}
	tool, err := New(cfg, WithSleeper(sleeper), WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	return tool, sleeper, &logs
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 0

	tool, err := New(cfg)
	assert.Error(t, err)
	assert.Nil(t, tool)
}

func TestTool_Metadata(t *testing.T) {
	tool, _, _ := newTool(t, testConfig())
	assert.Equal(t, "web_scraper", tool.Name())
	assert.NotEmpty(t, tool.Description())
	assert.Equal(t, "harvest-test", tool.Config().UserAgent)
}

func TestScrape_OmitsMissingPages(t *testing.T) {
	hits := &hitCounter{}
	server := newServer(t, hits)
	tool, _, logs := newTool(t, testConfig())

	records := tool.Scrape(context.Background(), []string{
		server.URL + "/ok",
		server.URL + "/missing",
		server.URL + "/ok2",
	})

	require.Len(t, records, 2)
	assert.Equal(t, "T", records[0].Title)
	assert.Equal(t, "T", records[1].Title)
	assert.Equal(t, "T Hello", records[0].Text)
	assert.Equal(t, 1, hits.get("/missing"), "404 must be fetched exactly once")
	assert.Contains(t, logs.String(), `"level":"error"`)
}

func TestScrape_BudgetStopsBeforeNextFetch(t *testing.T) {
	hits := &hitCounter{}
	server := newServer(t, hits)
	cfg := testConfig()
	cfg.MaxPages = 1
	tool, _, _ := newTool(t, cfg)

	records := tool.Scrape(context.Background(), []string{server.URL + "/ok", server.URL + "/ok2"})

	require.Len(t, records, 1)
	assert.Equal(t, 1, hits.get("/ok"))
	assert.Equal(t, 0, hits.get("/ok2"))
}

func TestScrape_EmptyPageIsOmitted(t *testing.T) {
	hits := &hitCounter{}
	server := newServer(t, hits)
	cfg := testConfig()
	cfg.MaxPages = 1
	tool, _, _ := newTool(t, cfg)

	report := tool.ScrapeDetailed(context.Background(), []string{server.URL + "/empty", server.URL + "/ok"})

	require.Len(t, report.Records, 1)
	assert.Equal(t, "T Hello", report.Records[0].Text)
	assert.Equal(t, 1, hits.get("/empty"))
	assert.Equal(t, 1, hits.get("/ok"))
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, types.OutcomeEmpty, report.Outcomes[0].Status)
}

func TestScrape_RateLimited(t *testing.T) {
	t.Run("every attempt rate limited", func(t *testing.T) {
		hits := &hitCounter{}
		server := newServer(t, hits)
		cfg := testConfig()
		cfg.RetryAttempts = 3
		tool, sleeper, _ := newTool(t, cfg)

		report := tool.ScrapeDetailed(context.Background(), []string{server.URL + "/busy"})

		assert.Empty(t, report.Records)
		assert.Equal(t, 3, hits.get("/busy"))
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.delays)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, types.OutcomeExhausted, report.Outcomes[0].Status)
	})

	t.Run("succeeds on third attempt", func(t *testing.T) {
		hits := &hitCounter{}
		server := newServer(t, hits)
		cfg := testConfig()
		cfg.RetryAttempts = 3
		tool, sleeper, _ := newTool(t, cfg)

		report := tool.ScrapeDetailed(context.Background(), []string{server.URL + "/busy-then-ok"})

		require.Len(t, report.Records, 1)
		assert.Equal(t, 3, report.Outcomes[0].Attempts)
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, sleeper.delays)
	})
}

func TestScrape_CertificateVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, page)
	}))
	defer server.Close()

	t.Run("verification disabled accepts self-signed", func(t *testing.T) {
		cfg := testConfig()
		cfg.VerifyCertificates = false
		tool, _, _ := newTool(t, cfg)

		records := tool.Scrape(context.Background(), []string{server.URL + "/"})
		require.Len(t, records, 1)
		assert.Equal(t, "T", records[0].Title)
	})

	t.Run("verification enabled retries and logs warnings", func(t *testing.T) {
		cfg := testConfig()
		cfg.VerifyCertificates = true
		cfg.RetryAttempts = 2
		tool, sleeper, logs := newTool(t, cfg)

		report := tool.ScrapeDetailed(context.Background(), []string{server.URL + "/"})

		assert.Empty(t, report.Records)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, 2, report.Outcomes[0].Attempts)
		assert.Empty(t, sleeper.delays)
		assert.Contains(t, logs.String(), `"level":"warn"`)
	})
}

func TestScrapeFeed(t *testing.T) {
	hits := &hitCounter{}
	server := newServer(t, hits)
	tool, _, _ := newTool(t, testConfig())

	report, err := tool.ScrapeFeed(context.Background(), server.URL+"/feed")

	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, server.URL+"/ok2", report.Outcomes[0].URL)
	assert.Equal(t, types.OutcomeNotFound, report.Outcomes[1].Status)
	assert.Equal(t, server.URL+"/ok", report.Outcomes[2].URL)
}

func TestScrapeFeed_FetchError(t *testing.T) {
	hits := &hitCounter{}
	server := newServer(t, hits)
	tool, _, _ := newTool(t, testConfig())

	_, err := tool.ScrapeFeed(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}
