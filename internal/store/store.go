package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// DefaultKeepRevisions is how many historical values SQLiteBackend keeps per key.
const DefaultKeepRevisions = 5

// SQLiteBackend is a transactional Backend on a local SQLite database.
// Every Set runs in one transaction: the current value is replaced and the
// previous values are kept as a short revision history.
type SQLiteBackend struct {
	db            *sql.DB
	drv           *entsql.Driver
	keepRevisions int
}

// Revision is one retained historical value of a key.
type Revision struct {
	Key       string
	Revision  int64
	Value     []byte
	CreatedAt time.Time
}

// Open creates a SQLiteBackend connected to the database at dsn.
// It applies recommended pragmas, checks the schema version and runs
// auto-migration.
func Open(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer per user: one connection keeps pragmas and
	// transactions on the same handle.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate(context.Background(), db, drv); err != nil {
		drv.Close()
		return nil, err
	}

	return &SQLiteBackend{db: db, drv: drv, keepRevisions: DefaultKeepRevisions}, nil
}

// SetKeepRevisions changes how many historical values are retained per key.
func (s *SQLiteBackend) SetKeepRevisions(n int) {
	if n < 1 {
		n = 1
	}
	s.keepRevisions = n
}

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLiteBackend) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	return s.drv.Close()
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query, args := builder().
		Select("value").
		From(entsql.Table(recordsTable.Name)).
		Where(entsql.EQ("key", key)).
		Query()

	var value []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key string, value []byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rev, err := nextRevision(ctx, tx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		query, args := builder().
			Insert(recordsTable.Name).
			Columns("key", "value", "revision", "updated_at").
			Values(key, value, rev, now).
			OnConflict(
				entsql.ConflictColumns("key"),
				entsql.ResolveWithNewValues(),
			).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert %q: %w", key, err)
		}

		query, args = builder().
			Insert(revisionsTable.Name).
			Columns("key", "revision", "value", "created_at").
			Values(key, rev, value, now).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("append revision %q: %w", key, err)
		}

		return s.prune(ctx, tx, key)
	})
}

func (s *SQLiteBackend) Remove(ctx context.Context, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{recordsTable.Name, revisionsTable.Name} {
			query, args := builder().
				Delete(table).
				Where(entsql.EQ("key", key)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("remove %q from %s: %w", key, table, err)
			}
		}
		return nil
	})
}

func (s *SQLiteBackend) Clear(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{recordsTable.Name, revisionsTable.Name} {
			query, args := builder().Delete(table).Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Revisions returns the retained history of key, newest first.
func (s *SQLiteBackend) Revisions(ctx context.Context, key string) ([]Revision, error) {
	query, args := builder().
		Select("key", "revision", "value", "created_at").
		From(entsql.Table(revisionsTable.Name)).
		Where(entsql.EQ("key", key)).
		OrderBy(entsql.Desc("revision")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions %q: %w", key, err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.Key, &r.Revision, &r.Value, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// prune deletes all but the newest keepRevisions history rows of key.
func (s *SQLiteBackend) prune(ctx context.Context, tx *sql.Tx, key string) error {
	// Find the threshold: the first revision past the ones we keep.
	query, args := builder().
		Select("revision").
		From(entsql.Table(revisionsTable.Name)).
		Where(entsql.EQ("key", key)).
		OrderBy(entsql.Desc("revision")).
		Limit(1).
		Offset(s.keepRevisions).
		Query()

	var threshold int64
	err := tx.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // fewer than keep revisions exist
		}
		return fmt.Errorf("query revisions for prune: %w", err)
	}

	query, args = builder().
		Delete(revisionsTable.Name).
		Where(entsql.And(
			entsql.EQ("key", key),
			entsql.LTE("revision", threshold),
		)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *SQLiteBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. LEVELUP_DB environment variable
// 2. $XDG_DATA_HOME/levelup/levelup.db
// 3. ~/.local/share/levelup/levelup.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LEVELUP_DB"); p != "" {
		return p, EnsureDir(p)
	}
	return defaultDataPath("levelup.db")
}

// DefaultFilePath resolves the flat key/value document path the same way,
// using LEVELUP_FILE and levelup.json.
func DefaultFilePath() (string, error) {
	if p := os.Getenv("LEVELUP_FILE"); p != "" {
		return p, EnsureDir(p)
	}
	return defaultDataPath("levelup.json")
}

func defaultDataPath(name string) (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "levelup", name)
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
