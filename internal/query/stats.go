package query

import (
	"context"
	"sort"

	"lore/internal/envelope"
	"lore/internal/schema"
)

// CorpusStats is the read-only census behind `migrate --stats` and
// `status`: how many annotations exist per stored schema version and how
// many cannot be read at all. The census never mutates a note; stored
// payloads migrate on read, not in place.
type CorpusStats struct {
	Total     int            `json:"total"`
	ByVersion map[string]int `json:"byVersion"`
	Corrupt   int            `json:"corrupt"`
	Pending   int            `json:"pending"` // records an on-read migration would touch
}

// Stats walks the corpus and reports the schema-version histogram. Version
// sniffing uses the cheap peek, not a full parse.
func (e *Engine) Stats(ctx context.Context) (*envelope.Response, error) {
	noted, err := e.backend.ListNoted(ctx)
	if err != nil {
		return nil, err
	}

	stats := &CorpusStats{ByVersion: map[string]int{}}
	for _, nc := range noted {
		payload, err := e.backend.Read(ctx, nc.Commit)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			continue
		}
		tag, err := schema.PeekVersion(payload)
		if err != nil {
			stats.Corrupt++
			e.logger.Debug("unreadable annotation in census", "commit", nc.Commit, "error", err)
			continue
		}
		stats.Total++
		stats.ByVersion[tag]++
		if tag != schema.CurrentTag {
			stats.Pending++
		}
	}

	b := envelope.New().Data(stats)
	ref, head, _ := e.provenanceFor(ctx, nil)
	b.WithProvenance(ref, head, sortedVersions(stats.ByVersion))
	if stats.Corrupt > 0 {
		b.WarningWithCode("corrupt-annotations",
			"some annotations could not be read; run lore doctor for details")
	}
	return b.Build(), nil
}

func sortedVersions(byVersion map[string]int) []string {
	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
