package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips any markup from customer-supplied free text and trims the
// result. Used for names, addresses, and order notes before persistence.
func CleanText(value string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(value))
}

// CleanTextLimit cleans the value and truncates it to at most limit runes.
func CleanTextLimit(value string, limit int) string {
	cleaned := CleanText(value)
	if limit <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > limit {
		return strings.TrimSpace(string(runes[:limit]))
	}
	return cleaned
}
