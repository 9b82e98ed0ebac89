// Package dbtest provides an in-memory database.DB for tests in packages
// above the drivers.
package dbtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

// DB is a scriptable database.DB. The zero value is a MySQL connection with
// no tables.
type DB struct {
	Tables  []string
	Columns map[string][]database.Column

	// QueryFunc answers Query; nil means every query returns zero rows.
	QueryFunc func(sql string, args ...any) (database.Rows, error)

	// ListErr is returned by ListTables when non-nil.
	ListErr error
	Kind    database.Dialect

	mu      sync.Mutex
	queries []string
	closed  bool
}

func (d *DB) Ping(context.Context) error { return nil }

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *DB) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Queries returns every statement passed to Query, in order.
func (d *DB) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

func (d *DB) Dialect() database.Dialect {
	if d.Kind == "" {
		return database.DialectMySQL
	}
	return d.Kind
}

func (d *DB) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	d.mu.Lock()
	d.queries = append(d.queries, sql)
	d.mu.Unlock()

	if d.QueryFunc == nil {
		return NewRows(nil), nil
	}
	return d.QueryFunc(sql, args...)
}

func (d *DB) ListTables(context.Context) ([]string, error) {
	if d.ListErr != nil {
		return nil, d.ListErr
	}
	return append([]string{}, d.Tables...), nil
}

func (d *DB) ListColumns(_ context.Context, table string) ([]database.Column, error) {
	cols, ok := d.Columns[table]
	if !ok {
		return nil, errs.New(errs.ErrKindQueryFailed, fmt.Sprintf("table %q has no columns", table))
	}
	return cols, nil
}

// Rows is an in-memory database.Rows.
type Rows struct {
	cols   []string
	data   [][]any
	pos    int
	closed bool
}

// NewRows builds a result set with the given column names and rows.
func NewRows(cols []string, data ...[]any) *Rows {
	return &Rows{cols: cols, data: data}
}

func (r *Rows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(row), len(dest))
	}
	for i := range dest {
		p, ok := dest[i].(*any)
		if !ok {
			return fmt.Errorf("scan: destination %d is %T, want *any", i, dest[i])
		}
		*p = row[i]
	}
	return nil
}

func (r *Rows) Columns() ([]string, error) { return r.cols, nil }
func (r *Rows) Close()                     { r.closed = true }
func (r *Rows) Err() error                 { return nil }

// IsClosed reports whether Close has been called.
func (r *Rows) IsClosed() bool { return r.closed }
