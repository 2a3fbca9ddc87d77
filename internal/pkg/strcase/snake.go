// Package strcase converts Go identifiers to the snake_case used in JSON.
package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake splits s before an upper case letter that follows a lower
// case letter or digit, and before the last letter of an initialism that
// starts a new word: UserID -> user_id, HTTPServer -> http_server.
func ToLowerSnake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) && wordStart(rs, i) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

func wordStart(rs []rune, i int) bool {
	prev := rs[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1])
}
