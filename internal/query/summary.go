package query

import (
	"context"

	"lore/internal/envelope"
	"lore/internal/output"
)

// SummaryResult is the field-stripped digest of a file: the newest
// surviving annotation per distinct anchor.
type SummaryResult struct {
	File    string                 `json:"file"`
	Anchors []output.AnchorSummary `json:"anchors"`
}

// Summary returns the newest annotation per distinct anchor in a file,
// stripped to intent, fact counts, and staleness. Markers with no anchor
// collapse into a single file-level row.
func (e *Engine) Summary(ctx context.Context, file string) (*envelope.Response, error) {
	results, warnings, err := e.resolveScope(ctx, FileScope(file))
	if err != nil {
		return nil, err
	}

	// resolveScope returns newest first, so the first record claiming an
	// anchor wins it.
	newest := map[string]*output.AnchorSummary{}
	for _, s := range results {
		fresh := e.freshnessFor(ctx, file, s)
		conf := e.confidenceFor(s)

		anchors := map[string]bool{}
		for _, km := range s.markers {
			anchors[km.marker.Anchor] = true
		}
		if len(anchors) == 0 {
			anchors[""] = true
		}

		for anchor := range anchors {
			if _, taken := newest[anchor]; taken {
				continue
			}
			row := &output.AnchorSummary{
				File:       file,
				Anchor:     anchor,
				Commit:     s.commit,
				Summary:    s.ann.Narrative.Summary,
				Decisions:  len(s.ann.Decisions),
				Confidence: conf.Score,
			}
			for _, km := range s.markers {
				if km.marker.Anchor == anchor {
					row.Markers++
				}
			}
			if fresh != nil {
				row.Stale = fresh.Stale
			}
			newest[anchor] = row
		}
	}

	res := &SummaryResult{File: file, Anchors: make([]output.AnchorSummary, 0, len(newest))}
	for _, row := range newest {
		res.Anchors = append(res.Anchors, *row)
	}
	output.SortAnchorSummaries(res.Anchors)

	ref, head, schemas := e.provenanceFor(ctx, results)
	b := envelope.New().
		Data(res).
		WithProvenance(ref, head, schemas)
	for _, w := range warnings {
		b.WarningWithCode(w.Code, w.Message)
	}
	if len(res.Anchors) > 0 {
		b.SuggestCall("lore explain "+file, "full narratives behind this digest")
	}
	return b.Build(), nil
}
