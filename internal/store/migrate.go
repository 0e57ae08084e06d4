package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// SchemaVersion is the database layout version written on first open.
const SchemaVersion = 2

var (
	// recordColumns holds the columns for the "kv_records" table.
	recordColumns = []*schema.Column{
		{Name: "key", Type: field.TypeString, Unique: true},
		{Name: "value", Type: field.TypeBytes},
		{Name: "revision", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// recordsTable holds the current value of every key.
	recordsTable = &schema.Table{
		Name:       "kv_records",
		Columns:    recordColumns,
		PrimaryKey: []*schema.Column{recordColumns[0]},
	}

	// revisionColumns holds the columns for the "kv_revisions" table.
	revisionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "key", Type: field.TypeString},
		{Name: "revision", Type: field.TypeInt64, Unique: true},
		{Name: "value", Type: field.TypeBytes},
		{Name: "created_at", Type: field.TypeTime},
	}
	// revisionsTable keeps the recent history of each key.
	revisionsTable = &schema.Table{
		Name:       "kv_revisions",
		Columns:    revisionColumns,
		PrimaryKey: []*schema.Column{revisionColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "kvrevision_key_revision",
				Unique:  false,
				Columns: []*schema.Column{revisionColumns[1], revisionColumns[2]},
			},
		},
	}

	tables = []*schema.Table{recordsTable, revisionsTable}
)

// migrate checks the recorded schema version and brings the tables up to
// date. Tables are managed by ent's migrator; the version row and the
// revision counter use raw SQL because they are single-row bookkeeping
// tables outside the entity model.
func migrate(ctx context.Context, db *sql.DB, drv dialect.Driver) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	version, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: database v%d, supported v%d", ErrSchemaTooNew, version, SchemaVersion)
	}

	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := ensureRevisionCounter(ctx, db); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_meta (id, version) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET version = excluded.version`,
		SchemaVersion,
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// readSchemaVersion returns the version recorded in schema_meta, or 0 for
// a database that has never been stamped.
func readSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_meta WHERE id = 1`).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// SchemaVersion returns the layout version recorded in the database.
func (s *SQLiteBackend) SchemaVersion(ctx context.Context) (int, error) {
	return readSchemaVersion(ctx, s.db)
}
