// ABOUTME: Normalization of raw agent replies into display text
// ABOUTME: Fixes literal escape sequences and strips wrapping quote runs

package reply

import (
	"strings"
	"unicode/utf8"
)

// htmlQuoteEntity is the literal entity some replies arrive wrapped in.
const htmlQuoteEntity = "&quot;"

// CleanDisplayText turns raw transport output into display text. It replaces
// literal backslash-n sequences with newlines, then strips contiguous runs of
// quote-like characters from the very start and end of the string. Interior
// content is never touched, and the function is idempotent.
func CleanDisplayText(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = trimLeadingQuotes(s)
	s = trimTrailingQuotes(s)
	return s
}

func isQuoteRune(r rune) bool {
	return r == '"' || r == '“' || r == '”'
}

func trimLeadingQuotes(s string) string {
	for len(s) > 0 {
		if strings.HasPrefix(s, htmlQuoteEntity) {
			s = s[len(htmlQuoteEntity):]
			continue
		}
		r, size := utf8.DecodeRuneInString(s)
		if !isQuoteRune(r) {
			break
		}
		s = s[size:]
	}
	return s
}

func trimTrailingQuotes(s string) string {
	for len(s) > 0 {
		if strings.HasSuffix(s, htmlQuoteEntity) {
			s = s[:len(s)-len(htmlQuoteEntity)]
			continue
		}
		r, size := utf8.DecodeLastRuneInString(s)
		if !isQuoteRune(r) {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}
