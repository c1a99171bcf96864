package query

import (
	"context"

	"lore/internal/schema"
)

// corpusHit is one successfully parsed annotation from a full-corpus walk.
type corpusHit struct {
	commit string
	ann    *schema.Annotation // corrections folded
	info   schema.ParseInfo
}

// scanStats reports the corpus walk: how much parsed, how much did not.
type scanStats struct {
	Annotated int
	Skipped   int
}

// scanCorpus walks every noted commit and hands each parseable annotation to
// visit. Corrupt notes are skipped and counted; one bad record must not take
// down a whole-corpus query.
func (e *Engine) scanCorpus(ctx context.Context, visit func(corpusHit)) (scanStats, error) {
	noted, err := e.backend.ListNoted(ctx)
	if err != nil {
		return scanStats{}, err
	}

	var stats scanStats
	for _, nc := range noted {
		payload, err := e.backend.Read(ctx, nc.Commit)
		if err != nil {
			return stats, err
		}
		if payload == nil {
			continue
		}
		record, info, err := schema.Parse(payload)
		if err != nil {
			stats.Skipped++
			e.logger.Debug("skipping unreadable annotation", "commit", nc.Commit, "error", err)
			continue
		}
		stats.Annotated++
		visit(corpusHit{commit: nc.Commit, ann: record.CurrentView(), info: info})
	}
	return stats, nil
}
