package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lore/internal/notes"
	"lore/internal/schema"
)

// Index is the dependency-index cache: a sqlite mirror of every dependency
// marker in the annotated corpus, keyed by the location the marker points
// at. It turns the inverse-dependency query from an O(annotated commits)
// scan into one indexed lookup.
type Index struct {
	db      *DB
	backend notes.Backend
}

// NewIndex binds the cache to the backend it mirrors.
func NewIndex(db *DB, backend notes.Backend) *Index {
	return &Index{db: db, backend: backend}
}

// RebuildStats reports what a refresh did.
type RebuildStats struct {
	// Rebuilt is false when the cache already matched the notes ref.
	Rebuilt bool `json:"rebuilt"`
	// Annotated is the number of noted commits indexed.
	Annotated int `json:"annotated"`
	// DepMarkers is the number of dependency markers indexed.
	DepMarkers int `json:"depMarkers"`
	// Skipped counts unreadable annotations. A corrupt note never fails
	// the rebuild; it is skipped and surfaced here.
	Skipped int `json:"skipped"`
	// RefTip is the notes ref commit the cache now reflects.
	RefTip string `json:"refTip,omitempty"`
}

// DependentRow is one cached dependency marker.
type DependentRow struct {
	Commit       string
	SourceFile   string
	SourceAnchor string
	TargetFile   string
	TargetAnchor string
	Assumption   string
	Description  string
	CreatedAt    time.Time
	Summary      string
	WritePath    string
}

// RefreshIfStale rebuilds the cache when the notes ref has moved since the
// last build. It returns the stats of the refresh (Rebuilt=false when the
// cache was already current).
func (ix *Index) RefreshIfStale(ctx context.Context) (RebuildStats, error) {
	tip, err := ix.backend.RefTip(ctx)
	if err != nil {
		return RebuildStats{}, err
	}

	var cachedTip string
	var cachedSkipped int
	err = ix.db.conn.QueryRow(`SELECT ref_tip, skipped FROM meta WHERE id = 1`).Scan(&cachedTip, &cachedSkipped)
	if err != nil && err != sql.ErrNoRows {
		return RebuildStats{}, fmt.Errorf("reading cache state: %w", err)
	}
	if err == nil && cachedTip == tip {
		stats := RebuildStats{RefTip: tip, Skipped: cachedSkipped}
		if stats.Annotated, stats.DepMarkers, err = ix.counts(); err != nil {
			return RebuildStats{}, err
		}
		return stats, nil
	}

	return ix.rebuild(ctx, tip)
}

// rebuild repopulates the cache from the notes ref. Corrupt annotations are
// skipped with a count; one bad note must not take down every inverse query.
func (ix *Index) rebuild(ctx context.Context, tip string) (RebuildStats, error) {
	noted, err := ix.backend.ListNoted(ctx)
	if err != nil {
		return RebuildStats{}, err
	}

	stats := RebuildStats{Rebuilt: true, RefTip: tip}

	type notedRow struct {
		commit     string
		noteObject string
		createdAt  string
		summary    string
		writePath  string
	}
	type depRow struct {
		commit       string
		sourceFile   string
		sourceAnchor string
		targetFile   string
		targetAnchor string
		assumption   string
		description  string
		createdAt    string
	}
	var notedRows []notedRow
	var depRows []depRow

	for _, nc := range noted {
		payload, err := ix.backend.Read(ctx, nc.Commit)
		if err != nil || payload == nil {
			stats.Skipped++
			continue
		}
		ann, _, err := schema.Parse(payload)
		if err != nil {
			stats.Skipped++
			continue
		}

		createdAt := ann.CreatedAt.UTC().Format(time.RFC3339)
		notedRows = append(notedRows, notedRow{
			commit:     nc.Commit,
			noteObject: nc.NoteObject,
			createdAt:  createdAt,
			summary:    ann.Narrative.Summary,
			writePath:  string(ann.Provenance.WritePath),
		})
		stats.Annotated++

		for _, m := range ann.Markers {
			if m.Kind != schema.MarkerDependency || m.Target == nil || m.Target.File == "" {
				continue
			}
			depRows = append(depRows, depRow{
				commit:       nc.Commit,
				sourceFile:   m.File,
				sourceAnchor: m.Anchor,
				targetFile:   m.Target.File,
				targetAnchor: m.Target.Anchor,
				assumption:   m.Assumption,
				description:  m.Description,
				createdAt:    createdAt,
			})
			stats.DepMarkers++
		}
	}

	err = ix.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM dep_targets`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM noted`); err != nil {
			return err
		}
		for _, r := range notedRows {
			if _, err := tx.Exec(
				`INSERT INTO noted (commit_id, note_object, created_at, summary, write_path) VALUES (?, ?, ?, ?, ?)`,
				r.commit, r.noteObject, r.createdAt, r.summary, r.writePath,
			); err != nil {
				return err
			}
		}
		for _, r := range depRows {
			if _, err := tx.Exec(
				`INSERT INTO dep_targets (commit_id, source_file, source_anchor, target_file, target_anchor, assumption, description, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.commit, r.sourceFile, r.sourceAnchor, r.targetFile, r.targetAnchor, r.assumption, r.description, r.createdAt,
			); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`
			UPDATE meta SET ref_tip = ?, built_at = ?, skipped = ? WHERE id = 1
		`, tip, time.Now().UTC().Format(time.RFC3339), stats.Skipped)
		return err
	})
	if err != nil {
		return RebuildStats{}, fmt.Errorf("rebuilding dependency index: %w", err)
	}
	return stats, nil
}

// Dependents returns cached dependency markers pointing at the file (and
// anchor, when non-empty), newest annotation first, capped at limit. The
// returned total is the uncapped match count so callers can surface
// truncation.
func (ix *Index) Dependents(ctx context.Context, file, anchor string, limit int) ([]DependentRow, int, error) {
	query := `
		SELECT d.commit_id, d.source_file, d.source_anchor, d.target_file, d.target_anchor,
		       d.assumption, d.description, d.created_at, n.summary, n.write_path
		FROM dep_targets d
		JOIN noted n ON n.commit_id = d.commit_id
		WHERE d.target_file = ?`
	args := []interface{}{file}
	if anchor != "" {
		query += ` AND d.target_anchor = ?`
		args = append(args, anchor)
	}
	query += ` ORDER BY d.created_at DESC, d.commit_id`

	rows, err := ix.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying dependency index: %w", err)
	}
	defer rows.Close()

	var all []DependentRow
	for rows.Next() {
		var r DependentRow
		var createdAt string
		if err := rows.Scan(&r.Commit, &r.SourceFile, &r.SourceAnchor, &r.TargetFile, &r.TargetAnchor,
			&r.Assumption, &r.Description, &createdAt, &r.Summary, &r.WritePath); err != nil {
			return nil, 0, fmt.Errorf("scanning dependency row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating dependency rows: %w", err)
	}

	total := len(all)
	if limit > 0 && total > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// VersionCounts returns the per-WritePath histogram of the cached corpus.
// Status uses it for a quick overview without re-reading every note.
func (ix *Index) VersionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := ix.db.conn.QueryContext(ctx, `SELECT write_path, COUNT(*) FROM noted GROUP BY write_path`)
	if err != nil {
		return nil, fmt.Errorf("counting cached annotations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var wp string
		var n int
		if err := rows.Scan(&wp, &n); err != nil {
			return nil, err
		}
		counts[wp] = n
	}
	return counts, rows.Err()
}

func (ix *Index) counts() (annotated, deps int, err error) {
	if err = ix.db.conn.QueryRow(`SELECT COUNT(*) FROM noted`).Scan(&annotated); err != nil {
		return 0, 0, fmt.Errorf("counting noted rows: %w", err)
	}
	if err = ix.db.conn.QueryRow(`SELECT COUNT(*) FROM dep_targets`).Scan(&deps); err != nil {
		return 0, 0, fmt.Errorf("counting dependency rows: %w", err)
	}
	return annotated, deps, nil
}
