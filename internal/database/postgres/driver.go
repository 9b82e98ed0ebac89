// Package postgres implements database.DB for PostgreSQL on top of a single
// pgx connection.
package postgres

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
)

const closeTimeout = 5 * time.Second

// Driver is a PostgreSQL implementation of database.DB backed by one
// *pgx.Conn. A pgx connection cannot run two statements at once, so mu is
// held from Query until the returned Rows are closed.
type Driver struct {
	conn *pgx.Conn
	mu   sync.Mutex
}

// New connects to PostgreSQL using cfg and returns a Driver.
func New(ctx context.Context, cfg *database.ConnectConfig) (*Driver, error) {
	connCfg, err := pgx.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid connection settings", err)
	}
	connCfg.ConnectTimeout = cfg.ConnectTimeout

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(dialCtx, connCfg)
	if err != nil {
		return nil, mapError(err, "connect failed")
	}

	d := &Driver{conn: conn}
	if err := d.Ping(dialCtx); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	return d, nil
}

// buildDSN renders a postgres:// URL so credentials are escaped properly.
// Every transaction on the connection defaults to read-only.
func buildDSN(cfg *database.ConnectConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Addr(),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	q.Set("application_name", "askdb")
	q.Set("default_transaction_read_only", "on")
	u.RawQuery = q.Encode()
	return u.String()
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.conn.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return d.conn.Close(ctx)
}

func (d *Driver) Dialect() database.Dialect {
	return database.DialectPostgres
}

// Query runs sql and returns rows that keep the connection locked until Close.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	d.mu.Lock()
	rows, err := d.conn.Query(ctx, sql, args...)
	if err != nil {
		d.mu.Unlock()
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows, unlock: d.mu.Unlock}, nil
}

// ListTables returns tables and views in the connection's current schema.
func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	return d.fetchStringList(ctx, "failed to list tables", q)
}

// ListColumns uses format_type so the declared modifier survives
// ("character varying(255)", "numeric(10,2)").
func (d *Driver) ListColumns(ctx context.Context, table string) ([]database.Column, error) {
	const q = `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod)
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c     ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
		  AND c.relname = $1
		  AND a.attnum  > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	cols := make([]database.Column, 0)
	for rows.Next() {
		var c database.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, mapError(err, "failed to scan column info")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	return cols, nil
}

// fetchStringList is a helper for queries that return a single text column.
func (d *Driver) fetchStringList(ctx context.Context, errMsg, q string, args ...any) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, errMsg)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, mapError(err, errMsg)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, errMsg)
	}
	return list, nil
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows and releases the
// connection lock exactly once on Close.
type pgxRows struct {
	rows   pgx.Rows
	unlock func()
	once   sync.Once
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *pgxRows) Close() {
	r.rows.Close()
	r.once.Do(r.unlock)
}

func (r *pgxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "error during row iteration")
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}
