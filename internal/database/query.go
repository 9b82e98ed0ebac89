package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/askdb/internal/errs"
)

// MaxPreviewRows caps Limit so a table preview can never pull a whole table.
const MaxPreviewRows = 1000

// SelectBuilder constructs a parameterized SELECT against a single table.
// Identifiers are quoted for the dialect; the row limit is passed as an arg.
//
// Usage:
//
//	sql, args, err := Select("orders", DialectMySQL).
//	    Columns("id", "total").
//	    Limit(50).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	limit   *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "table is required")
	}

	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = QuoteIdent(b.dialect, c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(b.dialect, b.table))

	var args []any
	if b.limit != nil {
		n := *b.limit
		if n <= 0 || n > MaxPreviewRows {
			return "", nil, errs.New(errs.ErrKindInvalidInput,
				fmt.Sprintf("limit must be between 1 and %d", MaxPreviewRows))
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.placeholder(1))
		args = append(args, n)
	}

	return sb.String(), args, nil
}

// placeholder returns the correct parameter placeholder for the dialect.
// Postgres: $1, $2, …   MySQL: ? (index is ignored)
func (b *SelectBuilder) placeholder(idx int) string {
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// QuoteIdent quotes a SQL identifier for the dialect: backticks for MySQL,
// double quotes (ANSI) for Postgres. Embedded quote characters are doubled.
func QuoteIdent(d Dialect, name string) string {
	if d == DialectPostgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
