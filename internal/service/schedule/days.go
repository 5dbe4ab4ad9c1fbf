package schedule

import (
	"fmt"
	"slices"
	"strings"
)

// Weekday はcron式で使用する曜日トークン
type Weekday string

const (
	Sunday    Weekday = "SUN"
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
)

// AllWeekdays は日曜始まりの全曜日
var AllWeekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Valid は既知の曜日トークンかどうか
func (d Weekday) Valid() bool {
	return slices.Contains(AllWeekdays, d)
}

func (d Weekday) index() int {
	return slices.Index(AllWeekdays, d)
}

// ParseDays は "MON-FRI", "mon,wed,fri", "FRI-MON" のような曜日指定を解析する。
// 結果は大文字に正規化され、重複を除いて日曜始まりの順で返す
func ParseDays(s string) ([]Weekday, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("曜日が指定されていません")
	}

	selected := make(map[Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			return nil, fmt.Errorf("曜日の指定が不正です: %q", s)
		}

		if from, to, ok := strings.Cut(part, "-"); ok {
			start, end := Weekday(from), Weekday(to)
			if !start.Valid() || !end.Valid() {
				return nil, fmt.Errorf("無効な曜日範囲です: %s", part)
			}
			// FRI-MON のような週をまたぐ範囲も許可する
			for i := start.index(); ; i = (i + 1) % len(AllWeekdays) {
				selected[AllWeekdays[i]] = true
				if i == end.index() {
					break
				}
			}
			continue
		}

		day := Weekday(part)
		if !day.Valid() {
			return nil, fmt.Errorf("無効な曜日です: %s", part)
		}
		selected[day] = true
	}

	days := make([]Weekday, 0, len(selected))
	for _, d := range AllWeekdays {
		if selected[d] {
			days = append(days, d)
		}
	}
	return days, nil
}

// FormatDays は曜日リストをカンマ区切りで返す
func FormatDays(days []Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}
