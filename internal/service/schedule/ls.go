package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"awssched/internal/service/common"
)

// 一覧の出力形式
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ListOptions は一覧表示のオプション
type ListOptions struct {
	Search string // globパターン、または部分一致文字列
	Format string
}

// Entry は一覧表示用のアソシエーション情報
type Entry struct {
	Name               string     `json:"name"`
	ID                 string     `json:"id"`
	DocumentName       string     `json:"documentName"`
	ScheduleExpression string     `json:"scheduleExpression"`
	LastExecutionDate  *time.Time `json:"lastExecutionDate,omitempty"`
}

// ListSchedules はアソシエーションを取得し、名前順に並べて返す
func ListSchedules(ctx context.Context, lister AssociationLister, opts ListOptions) ([]Entry, error) {
	associations, err := lister.ListAssociations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf(common.ListErrorFormat, common.ErrorIcon, "アソシエーション", err)
	}

	associations = common.FilterByPattern(associations, opts.Search, func(a Association) string { return a.Name })

	entries := make([]Entry, 0, len(associations))
	for _, a := range associations {
		entries = append(entries, Entry{
			Name:               a.Name,
			ID:                 a.ID,
			DocumentName:       a.DocumentName,
			ScheduleExpression: a.ScheduleExpression,
			LastExecutionDate:  a.LastExecutionDate,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Render は指定形式で一覧を書き出す
func Render(w io.Writer, entries []Entry, format string, search string) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		var condition string
		if search != "" {
			condition = fmt.Sprintf("「%s」に一致する", search)
		}
		common.DisplayList(w, entries, common.GenerateFilteredTitle("アソシエーション", condition), toTableData, &common.DisplayOptions{
			ShowCount:    true,
			EmptyMessage: "アソシエーションが見つかりませんでした",
		})
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatMarkdown:
		columns, data := toTableData(entries)
		renderMarkdown(w, columns, data)
		return nil
	}
	return fmt.Errorf("未対応の出力形式です: %s (table|json|markdown)", format)
}

func toTableData(entries []Entry) ([]common.TableColumn, [][]string) {
	columns := []common.TableColumn{
		{Header: "アソシエーション名"},
		{Header: "ドキュメント"},
		{Header: "スケジュール"},
		{Header: "最終実行日時"},
	}
	data := make([][]string, len(entries))
	for i, e := range entries {
		last := "-"
		if e.LastExecutionDate != nil {
			last = e.LastExecutionDate.UTC().Format("2006-01-02 15:04:05")
		}
		data[i] = []string{e.Name, e.DocumentName, e.ScheduleExpression, last}
	}
	return columns, data
}

func renderMarkdown(w io.Writer, columns []common.TableColumn, data [][]string) {
	headers := make([]string, len(columns))
	separators := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
		separators[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(w, "| %s |\n", strings.Join(separators, " | "))
	for _, row := range data {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}
