package recency

import (
	"strings"
	"time"

	"github.com/shouni/go-web-harvest/pkg/types"
)

// day は lookback の単位です。
const day = 24 * time.Hour

// publishedLayouts はメタデータに現れる公開日時の書式です。
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Policy は ContentRecord が十分に新しいかを判定します。
type Policy interface {
	IsFresh(record types.ContentRecord, now time.Time) bool
}

// PolicyFunc は関数を Policy として扱うためのアダプターです。
type PolicyFunc func(record types.ContentRecord, now time.Time) bool

func (f PolicyFunc) IsFresh(record types.ContentRecord, now time.Time) bool {
	return f(record, now)
}

// IsFresh は record.ExtractedAt が now - lookbackDays 以降であれば true を返します。
//
// タイムスタンプをパースできない場合も true を返します (fail-open)。
// ExtractedAt は抽出時に打刻されるため、通常のパイプラインではこの判定は常に true になります。
func IsFresh(record types.ContentRecord, lookbackDays int, now time.Time) bool {
	ts, err := time.Parse(time.RFC3339Nano, record.ExtractedAt)
	if err != nil {
		return true
	}
	return withinWindow(ts, lookbackDays, now)
}

func withinWindow(ts time.Time, lookbackDays int, now time.Time) bool {
	cutoff := now.Add(-time.Duration(lookbackDays) * day)
	return !ts.Before(cutoff)
}

// ExtractedAtPolicy は抽出時刻で判定する既定のポリシーです。
type ExtractedAtPolicy struct {
	LookbackDays int
}

func (p ExtractedAtPolicy) IsFresh(record types.ContentRecord, now time.Time) bool {
	return IsFresh(record, p.LookbackDays, now)
}

// PublishedAtPolicy はページのメタデータに記載された公開日時で判定します。
// 公開日時が無い、またはパースできない場合は fail-open で true を返します。
type PublishedAtPolicy struct {
	LookbackDays int
}

func (p PublishedAtPolicy) IsFresh(record types.ContentRecord, now time.Time) bool {
	ts, ok := ParsePublished(record.PublishedAt)
	if !ok {
		return true
	}
	return withinWindow(ts, p.LookbackDays, now)
}

// ParsePublished は公開日時の文字列を既知の書式で順にパースします。
func ParsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ForMode は設定のモードに対応するポリシーを返します。
func ForMode(mode types.RecencyMode, lookbackDays int) Policy {
	if mode == types.RecencyPublished {
		return PublishedAtPolicy{LookbackDays: lookbackDays}
	}
	return ExtractedAtPolicy{LookbackDays: lookbackDays}
}
