// Package strings holds small helpers for list-valued settings.
package strings

import (
	"strings"
)

// SplitList splits v on sep, trims each element and drops empty and repeated
// elements. Order of first occurrence is kept.
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(v, sep))
}

// DedupeAndTrim trims each element and drops empty and repeated elements.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
