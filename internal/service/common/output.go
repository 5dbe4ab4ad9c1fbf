package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// GenerateFilteredTitle はフィルタ条件に基づいてタイトルを生成
func GenerateFilteredTitle(resourceType string, conditions ...string) string {
	// 空文字列を除外
	var validConditions []string
	for _, cond := range conditions {
		if cond != "" {
			validConditions = append(validConditions, cond)
		}
	}

	if len(validConditions) == 0 {
		return fmt.Sprintf("%s一覧", resourceType)
	}

	return fmt.Sprintf("%s%s一覧", strings.Join(validConditions, ""), resourceType)
}

// FprintTable はテーブル形式でデータをwに書き出す
// 列幅は全角文字を2桁として計算する
func FprintTable(w io.Writer, title string, columns []TableColumn, data [][]string) {
	if title != "" {
		fmt.Fprintf(w, "\n%s:\n", title)
	}

	// 各列の最大幅を計算（ヘッダーとデータの中で最大値を取得）
	colWidths := make([]int, len(columns))
	for i, col := range columns {
		colWidths[i] = max(col.Width, runewidth.StringWidth(col.Header))
	}
	for _, row := range data {
		for i, cell := range row {
			if i < len(colWidths) {
				colWidths[i] = max(colWidths[i], runewidth.StringWidth(cell))
			}
		}
	}

	// ヘッダー表示
	for i, col := range columns {
		fmt.Fprintf(w, "%s ", runewidth.FillRight(col.Header, colWidths[i]))
	}
	fmt.Fprintln(w)

	// 区切り線
	for i := range columns {
		fmt.Fprintf(w, "%s ", strings.Repeat("-", colWidths[i]))
	}
	fmt.Fprintln(w)

	// データ行
	for _, row := range data {
		for i, cell := range row {
			if i < len(columns) {
				fmt.Fprintf(w, "%s ", runewidth.FillRight(cell, colWidths[i]))
			}
		}
		fmt.Fprintln(w)
	}
}

// DisplayList は汎用的なリスト表示関数
func DisplayList[T any](
	w io.Writer,
	items []T,
	title string,
	toTableData func([]T) ([]TableColumn, [][]string),
	opts *DisplayOptions,
) {
	// デフォルトオプション
	if opts == nil {
		opts = &DisplayOptions{}
	}
	if opts.EmptyMessage == "" {
		opts.EmptyMessage = "リソースが見つかりませんでした"
	}

	// フィルタ条件がある場合はタイトルに追加
	if len(opts.FilterMessages) > 0 {
		title = GenerateFilteredTitle(title, opts.FilterMessages...)
	}

	if len(items) == 0 {
		fmt.Fprintln(w, opts.EmptyMessage)
		return
	}

	columns, data := toTableData(items)
	FprintTable(w, title, columns, data)

	if opts.ShowCount {
		fmt.Fprintf(w, "\n合計: %d件\n", len(items))
	}
}
