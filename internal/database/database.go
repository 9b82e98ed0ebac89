// Package database defines the contract every SQL backend implements.
//
// All layers above this package talk only to DB; they never import the
// mysql or postgres packages directly. A DB wraps exactly one live connection;
// askdb never pools.
package database

import "context"

// Dialect identifies the SQL flavour a DB speaks.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// DisplayName is the product name used when talking to the model.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectPostgres:
		return "PostgreSQL"
	default:
		return "MySQL"
	}
}

// Column is a column name and its declared type exactly as the database
// reports it (e.g. "varchar(255)").
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// DB is the central contract for all database operations.
type DB interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// ListTables returns table names in the order the database reports them.
	ListTables(ctx context.Context) ([]string, error)

	// ListColumns returns the columns of table in ordinal order.
	ListColumns(ctx context.Context, table string) ([]Column, error)

	// Dialect reports which SQL flavour this connection speaks.
	Dialect() Dialect
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
