package feed

import (
	"github.com/mmcdole/gofeed"
)

// LinkSource は、リンクアイテムのリストを提供できる任意の型を表します。
// パイプラインへ渡す URL リストの抽象化の境界線となります。
type LinkSource interface {
	GetLinks() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks はフィード内の順序を保ったままリンクを返します。空のリンクと重複は除外します。
func (a *FeedAdapter) GetLinks() []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(a.Items))
	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil || item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		urls = append(urls, item.Link)
	}
	return urls
}

// GetAllLinks は LinkSource からリンクを抽出する汎用関数です。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	return source.GetLinks()
}
