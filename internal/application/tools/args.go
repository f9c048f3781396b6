package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// arguments 宽松解析后的参数
type arguments map[string]any

// parseArgs 空参数视为 {}；非对象 JSON 视为参数错误
func parseArgs(raw string) (arguments, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return arguments{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, invalidArgs("arguments must be a JSON object")
	}
	if out == nil {
		out = map[string]any{}
	}
	return arguments(out), nil
}

func (a arguments) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func (a arguments) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Int 读取整数并夹到 [min, max]，缺省返回 def
func (a arguments) Int(key string, def, min, max int) int {
	f, ok := a.Float(key)
	if !ok {
		return def
	}
	n := int(f)
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func (a arguments) Strings(key string) []string {
	v, ok := a[key]
	if !ok || v == nil {
		return nil
	}
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(vv, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
