// Package htmlsanitize strips markup from user-typed text before it reaches
// the data store or the guild (role names, channel names, nicknames).
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag, decodes entities back to characters and
// collapses runs of whitespace. Returns "" for input that is only markup.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	out := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(out), " ")
}

// IsPlainText reports whether s contains no tag-like content.
func IsPlainText(s string) bool {
	return !strings.ContainsRune(s, '<')
}
