// Package normalize turns free-form legacy text into display names and dedup keys
//
// Key pipeline
// 1 strip control bytes and invalid UTF-8
// 2 Unicode NFKD decomposition
// 3 Case folding
// 4 Remove zero-width and combining marks
// 5 Width fold fullwidth to ASCII, recompose NFC
// 6 Collapse whitespace to single spaces and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// transformer chains are stateful, pool them per goroutine use
var keyChain = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
			norm.NFC,
		)
	},
}

// Key returns the case-insensitive dedup key for a name.
// Two names that differ only in case, accents, width or spacing share a key
func Key(s string) string {
	s = Sanitize(s)
	if s == "" {
		return ""
	}
	tr := keyChain.Get().(transform.Transformer)
	ks, _, err := transform.String(tr, s)
	tr.Reset()
	keyChain.Put(tr)
	if err != nil {
		ks = strings.ToLower(s)
	}
	return collapse(ks, false)
}

// Name trims, collapses all whitespace to single spaces and caps the result at
// maxRunes runes. An empty result means the name is unrecognizable
func Name(s string, maxRunes int) string {
	return truncate(collapse(Sanitize(s), false), maxRunes)
}

// Text is Name for multi-line fields: whitespace runs that contain a line
// break collapse to one newline
func Text(s string, maxRunes int) string {
	return truncate(collapse(Sanitize(s), true), maxRunes)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		n++
	}
	return s
}

// collapse folds whitespace runs to one ASCII space, or one newline when
// keepLines is set and the run contained a line break. Edges are trimmed
func collapse(s string, keepLines bool) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	sawNL := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pending = true
			if r == '\n' || r == '\r' {
				sawNL = true
			}
			continue
		}
		if pending && b.Len() > 0 {
			if keepLines && sawNL {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		pending, sawNL = false, false
		b.WriteRune(r)
	}
	return b.String()
}
