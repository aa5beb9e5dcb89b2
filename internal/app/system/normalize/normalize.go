// Package normalize cleans user-typed values before validation.
package normalize

import (
	"strings"

	"github.com/dalemusser/promohub/internal/app/system/htmlsanitize"
)

// Name trims, strips markup and collapses inner whitespace. Case is kept.
func Name(s string) string {
	return htmlsanitize.PlainText(s)
}

// Date trims a YYYY-MM-DD input.
func Date(s string) string {
	return strings.TrimSpace(s)
}
