package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/xwb1989/sqlparser"
)

// Validate accepts exactly one read-only SELECT (or a UNION of them, or a
// WITH query ending in one) and rejects everything else before it reaches
// the database.
//
// MySQL statements are parsed first to name the statement kind. The grammar
// predates CTEs, window functions and several MySQL 8 expressions, so a
// statement it cannot parse is not rejected for that alone. Every statement
// then goes through a keyword scan using the dialect's quoting rules. Both
// drivers open their connection read-only, so a write that slips past the
// scan still fails on the server.
func Validate(sql string, dialect database.Dialect) error {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return errs.New(errs.ErrKindInvalidInput, "sql is required")
	}

	if dialect != database.DialectPostgres {
		if stmt, err := sqlparser.Parse(sql); err == nil {
			if err := checkParsed(stmt); err != nil {
				return err
			}
		}
	}

	if err := scanReadOnly(sql, dialect); err != nil {
		return errs.Wrap(errs.ErrKindRejected, "statement is not a single read-only SELECT", err)
	}
	return nil
}

func checkParsed(stmt sqlparser.Statement) error {
	sel, ok := stmt.(sqlparser.SelectStatement)
	if !ok {
		return errs.New(errs.ErrKindRejected,
			fmt.Sprintf("only SELECT statements may be executed, got %s", statementKind(stmt)))
	}
	if locking(sel) {
		return errs.New(errs.ErrKindRejected, "locking reads (FOR UPDATE / LOCK IN SHARE MODE) are not allowed")
	}
	return nil
}

func locking(sel sqlparser.SelectStatement) bool {
	switch s := sel.(type) {
	case *sqlparser.Select:
		return s.Lock != ""
	case *sqlparser.Union:
		return s.Lock != "" || locking(s.Left) || locking(s.Right)
	case *sqlparser.ParenSelect:
		return locking(s.Select)
	default:
		return false
	}
}

func statementKind(stmt sqlparser.Statement) string {
	switch s := stmt.(type) {
	case *sqlparser.Insert:
		return strings.ToUpper(s.Action)
	case *sqlparser.Update:
		return "UPDATE"
	case *sqlparser.Delete:
		return "DELETE"
	case *sqlparser.DDL:
		return strings.ToUpper(s.Action)
	case *sqlparser.Set:
		return "SET"
	case *sqlparser.Show:
		return "SHOW"
	case *sqlparser.Use:
		return "USE"
	default:
		return "a non-SELECT statement"
	}
}

// writeWords may not appear anywhere in an accepted statement. Inside a
// SELECT or WITH they only occur as data-modifying CTEs, SELECT ... INTO,
// or locking clauses.
var writeWords = map[string]bool{
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
	"INTO":   true,
	"DROP":   true,
	"CREATE": true,
	"ALTER":  true,
	"GRANT":  true,
	"REVOKE": true,
}

// scanReadOnly checks the bare words of sql: one statement, opening with
// SELECT or WITH, with no write keyword or locking clause.
func scanReadOnly(sql string, dialect database.Dialect) error {
	words, err := scanWords(sql, dialect)
	if err != nil {
		return err
	}

	for len(words) > 0 && words[len(words)-1] == ";" {
		words = words[:len(words)-1]
	}
	for i, w := range words {
		if w == ";" && i < len(words)-1 {
			return errors.New("only one statement may be executed")
		}
	}

	first := ""
	for _, w := range words {
		if w != "(" {
			first = w
			break
		}
	}
	if first != "SELECT" && first != "WITH" {
		if first == "" {
			first = "nothing"
		}
		return fmt.Errorf("only SELECT statements may be executed, got %s", first)
	}

	for i, w := range words {
		next := ""
		if i+1 < len(words) {
			next = words[i+1]
		}
		switch {
		case writeWords[w]:
			return fmt.Errorf("%s is not allowed in a read-only query", w)
		case w == "FOR" && (next == "SHARE" || next == "KEY"),
			w == "LOCK" && next == "IN":
			return errors.New("locking reads are not allowed")
		}
	}
	return nil
}
