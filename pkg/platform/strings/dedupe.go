// Package strings holds small helpers for cleaning string lists that come
// back from external services.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops empties and repeats. The first
// occurrence wins, so order is preserved.
func DedupeAndTrim[S ~string](values []S) []S {
	if len(values) == 0 {
		return values
	}

	seen := make(map[S]struct{}, len(values))
	result := make([]S, 0, len(values))
	for _, v := range values {
		trimmed := S(strings.TrimSpace(string(v)))
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
