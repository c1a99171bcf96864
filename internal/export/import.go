package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/zstd"

	lerrors "lore/internal/errors"
	"lore/internal/notes"
	"lore/internal/schema"
)

// ImportStats reports a restore. Skipped lines are counted, never fatal:
// a backup with one corrupt record still restores the rest.
type ImportStats struct {
	Imported int `json:"imported"`
	// Corrupt lines failed schema validation or were not export lines.
	Corrupt int `json:"corrupt"`
	// Existing commits already carried a note; imports never overwrite.
	Existing int `json:"existing"`
	// Missing commits do not exist in this repository.
	Missing int `json:"missing"`
}

// maxLine bounds one export line. Annotations are small; 16 MiB is
// generous headroom for pathological narratives.
const maxLine = 16 << 20

// Import restores an export stream. Every payload is validated through the
// schema chokepoint before writing; writes are create-only so a restore
// never clobbers annotations written since the backup.
func Import(ctx context.Context, backend notes.Backend, r io.Reader, logger *slog.Logger) (ImportStats, error) {
	var stats ImportStats

	zr, err := zstd.NewReader(r)
	if err != nil {
		return stats, lerrors.New(lerrors.MalformedPayload, "input is not a zstd export stream", err)
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64<<10), maxLine)

	sawManifest := false
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		if !sawManifest {
			var m Manifest
			if err := json.Unmarshal(raw, &m); err != nil || m.Format != FormatTag {
				return stats, lerrors.New(lerrors.UnknownSchemaVersion,
					fmt.Sprintf("unsupported export format %q; this build reads %s", m.Format, FormatTag), err)
			}
			sawManifest = true
			continue
		}

		var rec line
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Corrupt++
			logger.Debug("skipping unreadable export line", "error", err)
			continue
		}
		payload := []byte(rec.Payload)
		if _, _, err := schema.Parse(payload); err != nil {
			stats.Corrupt++
			logger.Debug("skipping invalid annotation in export", "commit", rec.Commit, "error", err)
			continue
		}

		err := backend.Write(ctx, rec.Commit, payload, notes.WriteOptions{Mode: notes.ModeCreate})
		switch {
		case err == nil:
			stats.Imported++
		case codeOf(err) == lerrors.WriteConflict:
			stats.Existing++
			logger.Debug("import kept the existing annotation", "commit", rec.Commit)
		case codeOf(err) == lerrors.CommitNotFound:
			stats.Missing++
			logger.Debug("import skipped a commit absent from this repository", "commit", rec.Commit)
		default:
			return stats, err
		}
	}
	if err := sc.Err(); err != nil {
		return stats, lerrors.New(lerrors.MalformedPayload, "reading export stream", err)
	}
	if !sawManifest {
		return stats, lerrors.New(lerrors.MalformedPayload, "export stream has no manifest", nil)
	}
	return stats, nil
}

func codeOf(err error) lerrors.ErrorCode {
	var le *lerrors.LoreError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
