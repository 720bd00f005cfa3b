package normalize

import (
	"strings"
	"unicode/utf8"
)

// Sanitize drops bytes that must never reach the database:
// NUL and other ASCII controls except tab and line breaks, DEL,
// C1 controls U+0080..U+009F and invalid UTF-8.
// Clean input is returned without allocating
func Sanitize(s string) string {
	clean := 0
	for clean < len(s) {
		r, size := utf8.DecodeRuneInString(s[clean:])
		if dropRune(r, size) {
			break
		}
		clean += size
	}
	if clean == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:clean])
	for i := clean; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !dropRune(r, size) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func dropRune(r rune, size int) bool {
	switch {
	case r == utf8.RuneError && size == 1:
		return true
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20 || r == 0x7F:
		return true
	case r >= 0x80 && r <= 0x9F:
		return true
	}
	return false
}
