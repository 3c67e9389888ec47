/*
Package storage defines the store adapter boundary.

PURPOSE:
  The rest of the system talks to persistence through these interfaces only.
  Statements are always parameterized; no caller ever concatenates user input
  into query text. Transaction scoping is explicit: a mutating operation calls
  Begin, runs its read-check-write sequence against the returned Tx, and
  commits or rolls back as one unit.

TRANSACTION DISCIPLINE:
  Every Begin must be paired with a deferred Rollback so the connection is
  released on every exit path. Rollback after a successful Commit is a no-op.

IMPLEMENTATIONS:
  storage/sqlite: SQLite via database/sql. The same patterns apply to
  PostgreSQL with only placeholder-dialect differences.
*/
package storage

import (
	"context"
	"database/sql"
)

// Queryer runs read statements.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer runs write statements.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is a transaction-scoped view of the store. Changes are visible only to
// this transaction until Commit.
type Tx interface {
	Queryer
	Execer
	Commit() error
	Rollback() error
}

// DB is the full store handle: direct reads/writes plus transaction scoping.
type DB interface {
	Queryer
	Execer
	Begin(ctx context.Context) (Tx, error)
}
