package retrieval

import (
	"strings"
	"unicode/utf8"
)

// Excerpt 折叠所有空白为单个空格并按 rune 截断，用于工具结果与 few-shot 示例。
func Excerpt(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	out := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(out) <= maxRunes {
		return out
	}
	r := []rune(out)
	return strings.TrimSpace(string(r[:maxRunes])) + "…"
}
