// Package storage maintains the sqlite cache behind the inverse-dependency
// query. The cache is derived state: it is rebuilt from the notes ref
// whenever the ref moves, and every query has a slower corpus-scan fallback
// when the database is unavailable.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"lore/internal/paths"
)

// DB wraps the sqlite connection with transaction helpers.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// Open opens or creates the index cache at .lore/index.db and brings its
// schema up to date.
func Open(repoRoot string, logger *slog.Logger) (*DB, error) {
	if _, err := paths.EnsureLoreDir(repoRoot); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", paths.LoreDirName, err)
	}

	dbPath := paths.DatabasePath(repoRoot)
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening index cache: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, dbPath: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.dbPath
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("transaction rollback failed", "error", err, "rollbackError", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Remove deletes the cache file. Doctor uses it to reset a corrupt cache;
// the next query rebuilds from the notes ref.
func Remove(repoRoot string) error {
	dbPath := paths.DatabasePath(repoRoot)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Exists reports whether the cache file is present on disk.
func Exists(repoRoot string) bool {
	_, err := os.Stat(filepath.Clean(paths.DatabasePath(repoRoot)))
	return err == nil
}
