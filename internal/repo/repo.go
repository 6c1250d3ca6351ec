// Package repo contains all database access logic for the hattakip backend.
// Each record kind has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each
// test, giving free per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (e.g. inserting a tracking token that already exists).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
