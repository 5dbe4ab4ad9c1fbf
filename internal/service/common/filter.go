package common

import (
	"strings"

	"github.com/gobwas/glob"
)

// MatchPattern はワイルドカードパターンマッチングを行う
// ワイルドカード（*, ?）を含む場合はglob形式でマッチング、
// 含まない場合は部分一致で判定する
func MatchPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if strings.ContainsAny(pattern, "*?") {
		g, err := glob.Compile(pattern)
		if err != nil {
			return false
		}
		return g.Match(name)
	}
	return strings.Contains(name, pattern)
}

// FilterByPattern はパターンに一致する要素のみを返す
func FilterByPattern[T any](items []T, pattern string, getName func(T) string) []T {
	if pattern == "" {
		return items
	}
	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if MatchPattern(getName(item), pattern) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
