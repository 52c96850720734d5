package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shouni/go-web-harvest/pkg/types"
)

// previewLength はコンテンツのプレビューとして表示する最大文字数です。
const previewLength = 100

// printReport は実行結果を出力します。asJSON の場合はレコード列のみを JSON 配列で出力します。
func printReport(w io.Writer, report types.RunReport, asJSON bool) error {
	if asJSON {
		records := report.Records
		if records == nil {
			records = []types.ContentRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("結果のJSONエンコードに失敗しました: %w", err)
		}
		return nil
	}

	fmt.Fprintln(w, "--- スクレイピング結果 ---")
	for i, o := range report.Outcomes {
		if o.Status == types.OutcomeAccepted {
			fmt.Fprintf(w, "✅ [%d] %s (試行回数: %d)\n", i+1, o.URL, o.Attempts)
			continue
		}
		fmt.Fprintf(w, "❌ [%d] %s (%s, 試行回数: %d)\n", i+1, o.URL, o.Status, o.Attempts)
		if o.Err != nil {
			fmt.Fprintf(w, "     エラー: %v\n", o.Err)
		}
	}

	fmt.Fprintln(w, "-------------------------------")
	for i, r := range report.Records {
		fmt.Fprintf(w, "[%d] %s (抽出: %s)\n", i+1, r.Title, r.ExtractedAt)
		fmt.Fprintf(w, "     %s\n", preview(r.Text))
	}

	fmt.Fprintln(w, "-------------------------------")
	fmt.Fprintf(w, "完了: 採用 %d 件, 処理URL %d 件\n", report.PagesProcessed, len(report.Outcomes))
	if report.Err != nil {
		fmt.Fprintf(w, "中断されました: %v\n", report.Err)
	}
	return nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return text
}
