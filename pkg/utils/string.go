package utils

import (
	"strings"
	"unicode/utf8"
)

// NormalizeWhitespace replaces runs of whitespace with a single space and trims the ends.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates str to at most maxRunes runes, appending "..." when cut.
func TruncateString(str string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	if utf8.RuneCountInString(str) <= maxRunes {
		return str
	}

	runes := []rune(str)

	return string(runes[:maxRunes]) + "..."
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsAnyFold reports whether any of the terms is within s, ignoring case.
func ContainsAnyFold(s string, terms ...string) bool {
	lower := strings.ToLower(s)

	for _, term := range terms {
		if term == "" {
			continue
		}

		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}

	return false
}

// SplitList splits a comma separated list, trimming entries and dropping empty ones.
func SplitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
