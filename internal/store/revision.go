package store

import (
	"context"
	"database/sql"
	"fmt"
)

// The revision counter assigns one increasing number to every write across
// all keys, so history rows of different keys can be ordered and the
// newest write is always identifiable (last write wins).
//
// It lives in a single-row table updated with RETURNING inside the write
// transaction, which makes the increment atomic with the write itself: a
// rolled-back write does not consume a revision.

func ensureRevisionCounter(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS global_revision (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return fmt.Errorf("create revision table: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO global_revision (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return fmt.Errorf("seed revision counter: %w", err)
	}
	return nil
}

// nextRevision atomically returns the next revision and increments the counter.
func nextRevision(ctx context.Context, tx *sql.Tx) (int64, error) {
	var rev int64
	err := tx.QueryRowContext(ctx,
		`UPDATE global_revision SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return rev, nil
}
