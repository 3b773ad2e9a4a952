package api

import (
	"fmt"
	"sort"
	"strings"
)

// sortedValues flattens a map into a slice ordered by the given key so
// list pagination stays stable across requests.
func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// Helpers for pulling loosely typed values out of decoded JSON bodies.

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func bodyString(body map[string]any, key string) string {
	return asString(body[key])
}

func bodyStringDefault(body map[string]any, key, def string) string {
	v, ok := body[key]
	if !ok || v == nil {
		return def
	}
	text := asString(v)
	if strings.TrimSpace(text) == "" {
		return def
	}
	return text
}

func bodyMap(body map[string]any, key string) map[string]any {
	if m, ok := body[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func bodyList(body map[string]any, key string) ([]any, bool) {
	l, ok := body[key].([]any)
	return l, ok
}

func bodyInt(body map[string]any, key string, def int) int {
	switch t := body[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n
		}
	}
	return def
}

func bodyBool(body map[string]any, key string) bool {
	b, _ := body[key].(bool)
	return b
}

func stringList(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, asString(v))
	}
	return out
}
