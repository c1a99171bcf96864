package storage

import (
	"database/sql"
	"fmt"
)

// schemaVersion is the current cache schema. Increment when adding
// migrations.
const schemaVersion = 1

// migrations maps version numbers to SQL that brings the schema from
// (version-1) to (version). Version 1 is the initial schema.
var migrations = map[int]string{
	1: `
-- One row per annotated commit, mirroring the notes ref.
CREATE TABLE IF NOT EXISTS noted (
	commit_id   TEXT NOT NULL PRIMARY KEY,
	note_object TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	write_path  TEXT NOT NULL DEFAULT ''
);

-- One row per dependency marker, keyed by the location it points AT.
CREATE TABLE IF NOT EXISTS dep_targets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id    TEXT NOT NULL REFERENCES noted(commit_id) ON DELETE CASCADE,
	source_file  TEXT NOT NULL DEFAULT '',
	source_anchor TEXT NOT NULL DEFAULT '',
	target_file  TEXT NOT NULL,
	target_anchor TEXT NOT NULL DEFAULT '',
	assumption   TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_dep_targets_target ON dep_targets(target_file, target_anchor);
CREATE INDEX IF NOT EXISTS idx_dep_targets_commit ON dep_targets(commit_id);

-- Single-row bookkeeping: which notes ref state this cache reflects.
CREATE TABLE IF NOT EXISTS meta (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	ref_tip        TEXT NOT NULL DEFAULT '',
	built_at       TEXT NOT NULL DEFAULT '',
	skipped        INTEGER NOT NULL DEFAULT 0
);
`,
}

// migrate brings the schema up to schemaVersion, applying each step in its
// own transaction.
func (db *DB) migrate() error {
	current, err := db.currentVersion()
	if err != nil {
		return err
	}

	for v := current + 1; v <= schemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration registered for cache schema version %d", v)
		}
		err := db.WithTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("applying cache migration %d: %w", v, err)
			}
			return setVersion(tx, v)
		})
		if err != nil {
			return err
		}
		db.logger.Debug("applied cache migration", "version", v)
	}
	return nil
}

// currentVersion reads the stored schema version; 0 means a fresh database.
func (db *DB) currentVersion() (int, error) {
	var name string
	err := db.conn.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='meta'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inspecting cache schema: %w", err)
	}

	var version int
	err = db.conn.QueryRow(`SELECT schema_version FROM meta WHERE id = 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading cache schema version: %w", err)
	}
	return version, nil
}

func setVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`
		INSERT INTO meta (id, schema_version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version
	`, version)
	return err
}
