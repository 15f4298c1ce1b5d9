package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// user_version history:
//
//	0  kv table without a version column
//	1  kv.version added
const currentSchemaVersion = 1

// Store is the SQLite key-value backend.
// Uses WAL mode for concurrent reads and immediate transactions so that
// units of work are serialized across processes sharing the file.
type Store struct {
	db *sql.DB
}

var _ KV = (*Store)(nil)

// Open opens the SQLite ledger file at path, creating it when missing, and
// brings its schema up to date. Every connection runs in WAL mode with a
// five second busy timeout, and every Update begins with BEGIN IMMEDIATE.
// Reopening an existing file leaves its data untouched.
func Open(path string) (*Store, error) {
	// _txlock=immediate makes BeginTx take the write lock up front, so two
	// processes cannot both read the ledger before either writes it.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection pool for inspection tools and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Isolation implements KV.
func (s *Store) Isolation() Isolation {
	return IsolationSerializable
}

// Get implements Reader.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return getRow(ctx, s.db, key)
}

// Keys implements Reader.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return keysWithPrefix(ctx, s.db, prefix)
}

// Update implements KV. The whole unit of work runs inside one immediate
// transaction.
func (s *Store) Update(ctx context.Context, fn func(tx Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	st := newStaged(&sqlTxReader{tx: tx})
	if err := fn(st); err != nil {
		return err
	}

	err = st.each(func(key string, value *string) error {
		if value == nil {
			_, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, version) VALUES (?, ?, 1)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = kv.version + 1
		`, key, *value)
		return err
	})
	if err != nil {
		return fmt.Errorf("update: write: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update: commit: %w", err)
	}
	return nil
}

// Version returns the write counter of key, 0 if absent.
func (s *Store) Version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("version %q: %w", key, err)
	}
	return v, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlTxReader struct {
	tx *sql.Tx
}

func (r *sqlTxReader) Get(ctx context.Context, key string) (string, bool, error) {
	return getRow(ctx, r.tx, key)
}

func (r *sqlTxReader) Keys(ctx context.Context, prefix string) ([]string, error) {
	return keysWithPrefix(ctx, r.tx, prefix)
}

func getRow(ctx context.Context, q queryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func keysWithPrefix(ctx context.Context, q queryer, prefix string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("keys %q: scan: %w", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keys %q: iterate: %w", prefix, err)
	}
	return keys, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the version column to kv tables created before it
// existed. New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('kv') WHERE name = 'version'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("migrate to v1: inspect kv: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE kv ADD COLUMN version INTEGER NOT NULL DEFAULT 1`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma reports an error unless PRAGMA name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
