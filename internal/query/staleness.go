package query

import (
	"context"
	"time"

	"lore/internal/notes"
)

// commitsSince counts commits touching the file after the annotated commit.
// The annotated commit itself does not count. When the annotated commit no
// longer appears in the path history (renames, rewrites), the count falls
// back to commits newer than the annotation's timestamp.
func commitsSince(ctx context.Context, backend notes.Backend, file, annotated string, annotatedAt time.Time) (int, error) {
	log, err := backend.LogForPath(ctx, file)
	if err != nil {
		return 0, err
	}

	// Newest first; everything before the annotated commit is later work.
	for i, meta := range log {
		if meta.Commit == annotated {
			return i, nil
		}
	}

	count := 0
	for _, meta := range log {
		if meta.Time.After(annotatedAt) {
			count++
		}
	}
	return count, nil
}
