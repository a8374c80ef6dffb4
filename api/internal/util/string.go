package util

import "strings"

func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeDescription folds case and whitespace so equivalent inputs share a cache key.
func NormalizeDescription(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
