// Package export backs up and restores the annotation corpus as
// zstd-compressed JSONL: one manifest line, then one line per annotated
// commit carrying the stored note bytes verbatim. Stored payloads are not
// rewritten on export; old schema versions survive a backup/restore cycle
// and still migrate on read.
package export

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	lerrors "lore/internal/errors"
	"lore/internal/notes"
)

// FormatTag identifies the export stream layout.
const FormatTag = "lore-export/v1"

// Manifest is the first JSONL line of every export.
type Manifest struct {
	Format     string    `json:"format"`
	Ref        string    `json:"ref"`
	Head       string    `json:"head,omitempty"`
	ExportedAt time.Time `json:"exportedAt"`
}

// line is one exported annotation. Payload carries the raw note bytes;
// corrections make a note more than one JSON document, so it travels as a
// string, not embedded JSON.
type line struct {
	Commit  string `json:"commit"`
	Payload string `json:"payload"`
}

// Stats reports what an export wrote.
type Stats struct {
	Annotations int `json:"annotations"`
}

// Export streams every stored annotation to w. Output is deterministic for
// a given corpus: commits are sorted, bytes are copied verbatim.
func Export(ctx context.Context, backend notes.Backend, ref string, w io.Writer) (Stats, error) {
	var stats Stats

	noted, err := backend.ListNoted(ctx)
	if err != nil {
		return stats, err
	}
	sort.Slice(noted, func(i, j int) bool { return noted[i].Commit < noted[j].Commit })

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return stats, lerrors.New(lerrors.InternalError, "initializing export compression", err)
	}

	head := ""
	if meta, err := backend.Head(ctx); err == nil {
		head = meta.Commit
	}

	enc := json.NewEncoder(zw)
	manifest := Manifest{
		Format:     FormatTag,
		Ref:        ref,
		Head:       head,
		ExportedAt: time.Now().UTC(),
	}
	if err := enc.Encode(manifest); err != nil {
		zw.Close()
		return stats, lerrors.New(lerrors.InternalError, "writing export manifest", err)
	}

	for _, nc := range noted {
		payload, err := backend.Read(ctx, nc.Commit)
		if err != nil {
			zw.Close()
			return stats, err
		}
		if payload == nil {
			continue
		}
		if err := enc.Encode(line{Commit: nc.Commit, Payload: string(payload)}); err != nil {
			zw.Close()
			return stats, lerrors.New(lerrors.InternalError, "writing export stream", err)
		}
		stats.Annotations++
	}

	if err := zw.Close(); err != nil {
		return stats, lerrors.New(lerrors.InternalError, "finalizing export stream", err)
	}
	return stats, nil
}
