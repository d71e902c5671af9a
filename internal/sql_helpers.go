package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/catalogue"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// pgPool is the subset of pgxpool.Pool the Postgres stores use. pgxmock
// pools satisfy it as well.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// constraintError converts unique and foreign key violations into a
// catalogue constraint error. Other errors are returned unchanged.
func constraintError(err error, code, message string) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation, pgForeignKeyViolation:
		return catalogue.NewConstraintViolationError(code, message).WithCause(err)
	}
	return err
}

// notFoundOr returns notFound when err is pgx.ErrNoRows.
func notFoundOr(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}

func txOptions(cfg catalogue.TransactionConfig) (pgx.TxOptions, error) {
	switch level := cfg.NormalizedIsolationLevel(); level {
	case "", "SERIALIZABLE":
		return pgx.TxOptions{IsoLevel: pgx.Serializable}, nil
	case "REPEATABLE READ":
		return pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, nil
	case "READ COMMITTED":
		return pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, nil
	case "READ UNCOMMITTED":
		return pgx.TxOptions{IsoLevel: pgx.ReadUncommitted}, nil
	default:
		return pgx.TxOptions{}, fmt.Errorf("unsupported isolation level %q", cfg.IsolationLevel)
	}
}

// likePrefix escapes LIKE wildcards in a path prefix and appends %.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
