// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
	"unicode"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	return DedupeBy(values, func(s string) string { return s })
}

// DedupeBy trims values, drops empties, and removes later elements whose key
// collides with an earlier one. The first spelling of each key is kept.
func DedupeBy(values []string, key func(string) string) []string {
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
		k := key(trimmed)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// PhoneKey reduces a phone number to its leading plus sign and digits so that
// "+880 1711-000000" and "+8801711000000" compare equal.
func PhoneKey(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
