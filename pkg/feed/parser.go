package feed

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/shouni/go-web-harvest/pkg/fetcher"
)

// Fetcher はフィード本文を取得する機能のインターフェースです。*fetcher.Fetcher が満たします。
type Fetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

// Parser はフィードの取得とパースを行います。
type Parser struct {
	fetcher Fetcher
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
func NewParser(f Fetcher) *Parser {
	return &Parser{fetcher: f}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
// 取得にはページと同じリトライポリシーが適用されます。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	res := p.fetcher.Fetch(ctx, feedURL)
	if !res.OK() {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s, 状態: %s, 試行回数: %d): %w", feedURL, res.Outcome, res.Attempts, res.Err)
	}

	parsed, err := gofeed.NewParser().ParseString(res.Body)
	if err != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, err)
	}
	return parsed, nil
}

// FetchLinks はフィードを取得し、記事の URL をフィード内の順序で返します。
func (p *Parser) FetchLinks(ctx context.Context, feedURL string) ([]string, error) {
	parsed, err := p.FetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return GetAllLinks(NewFeedAdapter(parsed)), nil
}
