/*
Package sqlite provides the SQLite-backed implementation of the store adapter.

PURPOSE:
  Implements storage.DB using database/sql with mattn/go-sqlite3. Owns the
  schema and its migration. Monetary and weight values are written as decimal
  strings into NUMERIC columns, so the reporting layer can SUM and ORDER over
  them server-side while domain code scans them back into exact decimals.

KEY TABLES:
  products: inventory items with a mutable stock count
  sales:    immutable point-in-time sale records (price/name snapshots)
  users:    back-office accounts (bcrypt password hashes)

  sales.product_id deliberately carries no foreign-key constraint: deleting a
  product leaves its sale history intact, and the history keeps reporting the
  snapshot values frozen at sale time.

CONCURRENCY:
  Opened in WAL mode: readers don't block, conflicting write transactions are
  serialized by the single writer. The connection pool is bounded via
  SetMaxOpenConns; excess requests queue on checkout.

USAGE:
  store, err := sqlite.New("./backoffice.db", 10)
  if err != nil { ... }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atelier/backoffice/storage"
)

// Store implements storage.DB on SQLite.
type Store struct {
	db *sql.DB
}

// Tx wraps a sql.Tx as a storage.Tx.
type Tx struct {
	tx *sql.Tx
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database. maxConns bounds the pool.
func New(path string, maxConns int) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		material TEXT NOT NULL DEFAULT '',
		weight NUMERIC NOT NULL DEFAULT 0,
		price NUMERIC NOT NULL,
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

	-- Sale rows are snapshots: product_name and price are copied from the
	-- product at sale time and never resynchronized. No FK on product_id.
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		quantity_sold INTEGER NOT NULL CHECK (quantity_sold > 0),
		price NUMERIC NOT NULL,
		total_amount NUMERIC NOT NULL,
		sale_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_product ON sales(product_id);
	CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(sale_date);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// storage.DB IMPLEMENTATION
// =============================================================================

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Begin starts a transaction. Callers must defer Rollback immediately so the
// connection is returned to the pool on every exit path.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// =============================================================================
// USERS
// =============================================================================

// User is a back-office account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// GetUserByUsername returns the user, or nil if no such user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var (
		u         User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// CreateUser inserts a new account with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, email, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// CountUsers reports how many accounts exist. Used for admin bootstrap.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
