package feed

import (
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
)

// MockLinkSource は LinkSource インターフェースを満たすテスト用のモックです。
type MockLinkSource struct {
	Links []string
}

func (m *MockLinkSource) GetLinks() []string {
	return m.Links
}

func TestFeedAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		feed     *gofeed.Feed
		expected []string
	}{
		{
			name: "正常ケース_複数のリンクを含む",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "http://example.com/a"},
					{Link: "http://example.com/b"},
					{Link: ""}, // 空リンクは無視される
					{Link: "http://example.com/c"},
				},
			},
			expected: []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"},
		},
		{
			name: "正常ケース_重複リンクは最初の位置のみ",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "http://example.com/a"},
					{Link: "http://example.com/b"},
					{Link: "http://example.com/a"},
				},
			},
			expected: []string{"http://example.com/a", "http://example.com/b"},
		},
		{
			name:     "エッジケース_アイテムが空",
			feed:     &gofeed.Feed{Items: []*gofeed.Item{}},
			expected: []string{},
		},
		{
			name:     "エッジケース_フィードがnil",
			feed:     nil,
			expected: []string{},
		},
		{
			name:     "エッジケース_nilアイテム",
			feed:     &gofeed.Feed{Items: []*gofeed.Item{nil, {Link: "http://example.com/x"}}},
			expected: []string{"http://example.com/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewFeedAdapter(tt.feed).GetLinks())
		})
	}
}

func TestGetAllLinks(t *testing.T) {
	expectedLinks := []string{"link1", "link2", "link3"}

	tests := []struct {
		name     string
		source   LinkSource
		expected []string
	}{
		{
			name: "正常ケース_FeedAdapterの利用",
			source: NewFeedAdapter(&gofeed.Feed{
				Items: []*gofeed.Item{{Link: "link1"}, {Link: "link2"}, {Link: "link3"}},
			}),
			expected: expectedLinks,
		},
		{
			name:     "正常ケース_MockLinkSourceの利用",
			source:   &MockLinkSource{Links: expectedLinks},
			expected: expectedLinks,
		},
		{
			name:     "エッジケース_ソースがnil",
			source:   nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetAllLinks(tt.source))
		})
	}
}
