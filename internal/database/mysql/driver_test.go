package mysql

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(db), mock
}

func TestListTables_PreservesServerOrder(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop"}).
			AddRow("orders").
			AddRow("customers").
			AddRow("Line_Items"))

	tables, err := d.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers", "Line_Items"}, tables)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables_Empty(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop"}))

	tables, err := d.ListTables(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
}

func TestListColumns(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE"}).
			AddRow("id", "int unsigned").
			AddRow("name", "varchar(255)"))

	cols, err := d.ListColumns(context.Background(), "customers")
	require.NoError(t, err)
	assert.Equal(t, []database.Column{
		{Name: "id", Type: "int unsigned"},
		{Name: "name", Type: "varchar(255)"},
	}, cols)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_MapsServerError(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM nope")).
		WillReturnError(&gomysql.MySQLError{Number: 1146, Message: "Table 'shop.nope' doesn't exist"})

	_, err := d.Query(context.Background(), "SELECT * FROM nope")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, errs.Message(err), "Table 'shop.nope' doesn't exist")
}

func TestQuery_ScanRows(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM customers")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), []byte("A")))

	rows, err := d.Query(context.Background(), "SELECT * FROM customers")
	require.NoError(t, err)

	got, cols, err := database.ScanRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)
	assert.Equal(t, []map[string]any{{"id": int64(1), "name": "A"}}, got)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errs.ErrKind
	}{
		{"access denied", &gomysql.MySQLError{Number: 1045, Message: "Access denied"}, errs.ErrKindConnectionFailed},
		{"unknown database", &gomysql.MySQLError{Number: 1049, Message: "Unknown database 'x'"}, errs.ErrKindConnectionFailed},
		{"syntax", &gomysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, errs.ErrKindQueryFailed},
		{"unknown column", &gomysql.MySQLError{Number: 1054, Message: "Unknown column"}, errs.ErrKindQueryFailed},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"dial", errors.New("dial tcp 10.0.0.1:3306: connect: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errs.Kind(mapError(tt.err, "op")))
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}

func TestBuildDSN(t *testing.T) {
	cfg := &database.ConnectConfig{
		Host:           "db.internal",
		Port:           3307,
		User:           "reader",
		Password:       "p@ss:word",
		Database:       "shop",
		ConnectTimeout: 5 * time.Second,
	}

	dsn := buildDSN(cfg)

	assert.True(t, strings.HasPrefix(dsn, "reader:p@ss:word@tcp(db.internal:3307)/shop?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=5s")
	assert.NotContains(t, dsn, "multiStatements")

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.False(t, parsed.MultiStatements)
	assert.Equal(t, "1", parsed.Params["transaction_read_only"])
}
