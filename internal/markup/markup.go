// Package markup neutralizes server supplied text before it is placed into
// HTML output.
package markup

import (
	"html"
	"strings"
)

// Escape returns s with the HTML metacharacters <, >, &, ' and " replaced by
// entities so it renders as literal text.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Attr escapes s for use inside a double quoted attribute value and drops
// control characters that have no business in one.
func Attr(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(s)
}
