// Package paths centralizes the on-disk layout of a lore workspace.
// Everything lore keeps outside the notes refs lives under <repo>/.lore.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// LoreDirName is the per-repo workspace directory
	LoreDirName = ".lore"

	// ConfigFileName is the JSON config inside the workspace dir
	ConfigFileName = "config.json"

	// DatabaseFileName is the sqlite dependency-index cache
	DatabaseFileName = "index.db"

	// LogsSubdir holds rotated log files
	LogsSubdir = "logs"

	// LogFileName is the active log file
	LogFileName = "lore.log"

	// AuthorsFileName is the optional author alias map (TOML)
	AuthorsFileName = "authors.toml"

	// PendingOpFileName is the rewrite marker written by the pre-rewrite
	// hook stage and consumed by `lore rewrite`
	PendingOpFileName = "lore-pending.json"
)

// LoreDir returns the workspace directory for a repo root.
func LoreDir(repoRoot string) string {
	return filepath.Join(repoRoot, LoreDirName)
}

// ConfigPath returns the config file location for a repo root.
func ConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, LoreDirName, ConfigFileName)
}

// DatabasePath returns the index cache location for a repo root.
func DatabasePath(repoRoot string) string {
	return filepath.Join(repoRoot, LoreDirName, DatabaseFileName)
}

// LogPath returns the active log file location for a repo root.
func LogPath(repoRoot string) string {
	return filepath.Join(repoRoot, LoreDirName, LogsSubdir, LogFileName)
}

// AuthorsPath returns the author alias map location for a repo root.
func AuthorsPath(repoRoot string) string {
	return filepath.Join(repoRoot, LoreDirName, AuthorsFileName)
}

// PendingOpPath returns the rewrite marker location inside the git dir.
func PendingOpPath(gitDir string) string {
	return filepath.Join(gitDir, PendingOpFileName)
}

// EnsureLoreDir creates the workspace directory (and logs subdir) if missing
// and returns its path.
func EnsureLoreDir(repoRoot string) (string, error) {
	dir := LoreDir(repoRoot)
	if err := os.MkdirAll(filepath.Join(dir, LogsSubdir), 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Canonical converts a user-supplied path into the repo-relative,
// forward-slash form annotation records use. Relative input is taken as
// already repo-relative and only cleaned; absolute input is rebased onto
// repoRoot. Paths escaping the repository are rejected.
func Canonical(path, repoRoot string) (string, error) {
	rel := path
	if filepath.IsAbs(path) {
		// Rel emits .. escapes on symlinked checkouts unless both
		// sides are resolved first.
		r, err := filepath.Rel(followLinks(repoRoot), followLinks(path))
		if err != nil {
			return "", err
		}
		rel = r
	}

	rel = filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	switch {
	case rel == "." || rel == "":
		return "", fmt.Errorf("%q does not name a file in the repository", path)
	case rel == ".." || strings.HasPrefix(rel, "../"):
		return "", fmt.Errorf("%q is outside the repository", path)
	}
	return rel, nil
}

// followLinks resolves symlinks on the longest existing prefix of path.
// Annotations outlive deletions, so a missing leaf is fine; its parent
// still gets resolved.
func followLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir, base := filepath.Split(path)
	if dir == "" || dir == path {
		return path
	}
	return filepath.Join(followLinks(filepath.Clean(dir)), base)
}
