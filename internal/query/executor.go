// Package query runs model-generated or user-edited SELECT statements
// against the live connection and shapes the result for display.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

// Result is one executed statement.
//
// Table is nil when the statement could not be classified, which encodes as
// JSON null.
type Result struct {
	// SQL is the statement as sent to the database.
	SQL     string           `json:"-"`
	Rows    []map[string]any `json:"results"`
	Headers []string         `json:"headers"`
	Table   *string          `json:"table"`
}

// Executor validates and runs statements with a per-statement deadline.
type Executor struct {
	QueryTimeout time.Duration
}

// Execute validates sql, runs it as-is with no parameters, and materializes
// every row.
func (e *Executor) Execute(ctx context.Context, db database.DB, sql string) (*Result, error) {
	dialect := database.DialectMySQL
	if db != nil {
		dialect = db.Dialect()
	}
	if err := Validate(sql, dialect); err != nil {
		return nil, err
	}
	sql = strings.TrimSpace(sql)
	return e.run(ctx, db, Classify(sql), sql)
}

// Preview reads up to limit rows of one table without going through the
// model. The statement is built with quoted identifiers, so it is not
// re-validated.
func (e *Executor) Preview(ctx context.Context, db database.DB, table string, limit int) (*Result, error) {
	sql, args, err := database.Select(table, db.Dialect()).Limit(limit).Build()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, db, table, sql, args...)
}

func (e *Executor) run(ctx context.Context, db database.DB, table, sql string, args ...any) (*Result, error) {
	if db == nil {
		return nil, errs.New(errs.ErrKindNotConnected, "No DB connection configured.")
	}
	if e.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.QueryTimeout)
		defer cancel()
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	data, columns, err := database.ScanRows(rows)
	if err != nil {
		return nil, err
	}

	headers := []string{}
	if len(data) > 0 {
		headers = columns
	}

	res := &Result{SQL: sql, Rows: data, Headers: headers}
	if table != "" {
		res.Table = &table
	}
	return res, nil
}
