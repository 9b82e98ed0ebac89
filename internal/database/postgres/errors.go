package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/askdb/internal/errs"
)

// SQLSTATE classes that mean "could not connect / not allowed to connect".
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
var connectionClasses = []string{
	"08", // connection exception
	"28", // invalid authorization specification
	"3D", // invalid catalog name (unknown database)
	"53", // insufficient resources (too many connections)
	"57", // operator intervention (admin shutdown)
}

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), msg, err)
	}

	// Fallthrough: connection-level errors (TLS, network, closed conn)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifySQLState(code string) errs.ErrKind {
	for _, class := range connectionClasses {
		if strings.HasPrefix(code, class) {
			return errs.ErrKindConnectionFailed
		}
	}
	return errs.ErrKindQueryFailed
}
