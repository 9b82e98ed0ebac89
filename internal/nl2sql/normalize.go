package nl2sql

import (
	"regexp"
	"strings"
)

const backtick = "`"

var (
	reFence         = regexp.MustCompile("(?i)```sql|```")
	reTrailingSemis = regexp.MustCompile(`;+\s*$`)
)

// Normalize turns raw model output into a runnable statement: code fences
// are removed wherever they appear, wrapping backticks are stripped, and
// surrounding whitespace and trailing semicolons are dropped. The cleanup
// repeats until nothing changes, so Normalize(Normalize(x)) == Normalize(x).
//
// No semantic check happens here; see query.Validate.
func Normalize(raw string) string {
	s := raw
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = reFence.ReplaceAllString(s, "")
	s = trimSemicolons(s)
	s = stripWrappingBackticks(s)
	return trimSemicolons(s)
}

func trimSemicolons(s string) string {
	s = strings.TrimSpace(s)
	s = reTrailingSemis.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripWrappingBackticks removes the leading run of backticks and at most as
// many trailing ones. A statement never starts with a quoted identifier, so a
// leading backtick is wrapping; a trailing one with no leading partner is
// kept, since it closes an identifier like `orders`.
func stripWrappingBackticks(s string) string {
	trimmed := strings.TrimLeft(s, backtick)
	n := len(s) - len(trimmed)
	for i := 0; i < n && strings.HasSuffix(trimmed, backtick); i++ {
		trimmed = strings.TrimSuffix(trimmed, backtick)
	}
	return trimmed
}
