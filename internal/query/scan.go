package query

import (
	"errors"
	"strings"

	"github.com/koustreak/askdb/internal/database"
)

var (
	errUnterminatedQuote   = errors.New("unterminated quoted text")
	errUnterminatedComment = errors.New("unterminated comment")
)

// scanWords reduces sql to its bare words, upper-cased, plus "(" and ";"
// markers. String literals, quoted identifiers and comments are dropped
// following the dialect's lexical rules:
//
//   - MySQL: '...' and "..." are strings with backslash escapes, `...` is an
//     identifier, # and "-- " start line comments, and the body of a /*! */
//     or /*+ */ comment is kept because the server executes it.
//   - PostgreSQL: '...' has no backslash escapes unless written E'...',
//     "..." is an identifier, $tag$...$tag$ is a string, and block comments
//     nest.
func scanWords(sql string, dialect database.Dialect) ([]string, error) {
	pg := dialect == database.DialectPostgres

	var words []string
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			end, err := skipQuoted(sql, i, '\'', !pg)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '"':
			end, err := skipQuoted(sql, i, '"', !pg)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '`' && !pg:
			end, err := skipQuoted(sql, i, '`', false)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '-' && strings.HasPrefix(sql[i:], "--") && (pg || i+2 == len(sql) || isSpace(sql[i+2])):
			i = lineEnd(sql, i)

		case c == '#' && !pg:
			i = lineEnd(sql, i)

		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			if !pg && (strings.HasPrefix(sql[i:], "/*!") || strings.HasPrefix(sql[i:], "/*+")) {
				i += 3
				continue
			}
			end, err := skipBlockComment(sql, i, pg)
			if err != nil {
				return nil, err
			}
			i = end

		case c == '$' && pg:
			end, ok, err := skipDollarQuoted(sql, i)
			if err != nil {
				return nil, err
			}
			if !ok {
				end = i + 1
			}
			i = end

		case c == '(' || c == ';':
			words = append(words, string(c))
			i++

		case isWordByte(c):
			j := i
			for j < len(sql) && isWordByte(sql[j]) {
				j++
			}
			word := strings.ToUpper(sql[i:j])
			if pg && word == "E" && j < len(sql) && sql[j] == '\'' {
				end, err := skipQuoted(sql, j, '\'', true)
				if err != nil {
					return nil, err
				}
				i = end
				continue
			}
			words = append(words, word)
			i = j

		default:
			i++
		}
	}
	return words, nil
}

// skipQuoted returns the index just past the quoted run opening at start.
// A doubled quote is an escaped quote.
func skipQuoted(s string, start int, quote byte, backslash bool) (int, error) {
	for i := start + 1; i < len(s); {
		switch {
		case backslash && s[i] == '\\':
			i += 2
		case s[i] == quote:
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, errUnterminatedQuote
}

func skipBlockComment(s string, start int, nested bool) (int, error) {
	depth := 1
	for i := start + 2; i < len(s); {
		switch {
		case nested && strings.HasPrefix(s[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(s[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i, nil
			}
		default:
			i++
		}
	}
	return 0, errUnterminatedComment
}

// skipDollarQuoted reports ok=false when the $ at start opens a positional
// parameter ($1) or is part of an operator rather than a dollar quote.
func skipDollarQuoted(s string, start int) (end int, ok bool, err error) {
	j := start + 1
	if j < len(s) && s[j] != '$' {
		if !isTagStart(s[j]) {
			return 0, false, nil
		}
		for j < len(s) && isTagByte(s[j]) {
			j++
		}
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}

	tag := s[start : j+1]
	idx := strings.Index(s[j+1:], tag)
	if idx < 0 {
		return 0, false, errUnterminatedQuote
	}
	return j + 1 + idx + len(tag), true, nil
}

func lineEnd(s string, i int) int {
	if idx := strings.IndexByte(s[i:], '\n'); idx >= 0 {
		return i + idx + 1
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isTagStart(c byte) bool {
	return c == '_' || c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isTagByte(c byte) bool {
	return isTagStart(c) || ('0' <= c && c <= '9')
}

func isWordByte(c byte) bool {
	return isTagByte(c) || c == '$'
}
