package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html"

	"github.com/shouni/go-web-harvest/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	mainContentSelectors = "article, main, div[role='main'], #main, #content, .post-content, .article-body, .entry-content, .markdown-body, .readme"
	noiseSelectors       = ".related-posts, .social-share, .comments, .ad-banner, .advertisement"
	layoutSelectors      = "header, footer, nav, aside, .sidebar, form"
)

// invisibleTags は、テキストとして表示されない要素です。子孫のテキストノードも無視します。
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// publishedSources は公開日時を探す順序です。最初に見つかった値を採用します。
var publishedSources = []struct {
	selector string
	attr     string
}{
	{"meta[property='article:published_time']", "content"},
	{"meta[property='og:published_time']", "content"},
	{"meta[itemprop='datePublished']", "content"},
	{"meta[name='pubdate']", "content"},
	{"meta[name='date']", "content"},
	{"time[datetime]", "datetime"},
}

// Extractor は生のマークアップを ContentRecord に変換します。
// 不正なマークアップに対しても失敗せず、取得できた範囲の結果を返します。
type Extractor struct {
	mode types.ExtractMode
	now  func() time.Time
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithMode は本文テキストの抽出範囲を設定します。
func WithMode(mode types.ExtractMode) Option {
	return func(e *Extractor) {
		e.mode = mode
	}
}

// WithClock は extractedAt の打刻に使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		mode: types.ExtractFull,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract はマークアップからタイトルとプレーンテキストを抽出し、抽出時刻を打刻します。
func (e *Extractor) Extract(rawMarkup string) types.ContentRecord {
	record := types.ContentRecord{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawMarkup))
	if err == nil {
		record.Title = textUtils.NormalizeText(doc.Find("title").First().Text())
		record.PublishedAt = findPublished(doc)
		record.Text = collectText(e.contentRoot(doc))
	}

	// 取得時刻ではなく抽出時刻
	record.ExtractedAt = e.now().Format(time.RFC3339Nano)
	return record
}

// contentRoot はテキストを収集する範囲を返します。
func (e *Extractor) contentRoot(doc *goquery.Document) *goquery.Selection {
	if e.mode != types.ExtractMain {
		return doc.Selection
	}

	mainContent := doc.Find(mainContentSelectors).First()
	if mainContent.Length() == 0 {
		doc.Find(layoutSelectors).Remove()
		mainContent = doc.Selection
	}
	mainContent.Find(noiseSelectors).Remove()
	return mainContent
}

// collectText は表示対象のテキストノードを文書順に走査し、単一のスペースで結合します。
func collectText(sel *goquery.Selection) string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := textUtils.NormalizeText(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			if invisibleTags[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// findPublished はメタデータから公開日時の文字列を探します。見つからない場合は空文字列です。
func findPublished(doc *goquery.Document) string {
	for _, src := range publishedSources {
		if v, ok := doc.Find(src.selector).First().Attr(src.attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
