package query

import (
	"context"
	"time"

	"lore/internal/envelope"
	"lore/internal/output"
	"lore/internal/schema"
)

// TimelineResult is the ordered annotation history for a scope. Unlike
// Explain it never collapses by recency: every annotated commit that
// touched the scope appears, oldest first.
type TimelineResult struct {
	Scope   Scope                  `json:"scope"`
	Entries []output.TimelineEntry `json:"entries"`
	Total   int                    `json:"total"`
}

// Timeline returns every historical annotation touching the scope in
// chronological order, following synthesis source links one hop so the
// pre-rewrite records a squash or amend was built from stay reachable.
func (e *Engine) Timeline(ctx context.Context, scope Scope) (*envelope.Response, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var warnings []envelope.Warning
	entries := map[string]output.TimelineEntry{}
	var sourceLinks []string

	for _, file := range scope.Files {
		log, err := e.backend.LogForPath(ctx, file)
		if err != nil {
			return nil, err
		}
		for _, meta := range log {
			if _, done := entries[meta.Commit]; done {
				continue
			}
			entry, sources, ok, err := e.timelineEntry(ctx, meta.Commit, scope)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			entries[meta.Commit] = entry
			sourceLinks = append(sourceLinks, sources...)
		}
	}

	// One hop: pull in the orphaned originals a synthesized record points
	// at. Their own source links are not followed.
	for _, src := range sourceLinks {
		if _, done := entries[src]; done {
			continue
		}
		entry, _, ok, err := e.timelineEntry(ctx, src, scope)
		if err != nil {
			// Orphaned sources may be garbage collected; that is history
			// doing its job, not a query failure.
			warnings = append(warnings, envelope.Warning{
				Code:    "source-unreadable",
				Message: "a synthesis source annotation could not be read: " + src,
			})
			continue
		}
		if ok {
			entries[src] = entry
		}
	}

	ordered := make([]output.TimelineEntry, 0, len(entries))
	for _, entry := range entries {
		ordered = append(ordered, entry)
	}
	output.SortTimeline(ordered)

	total := len(ordered)
	limit := e.cfg.Query.MaxTimeline
	if limit > 0 && len(ordered) > limit {
		// Keep the most recent window; deep history is what gets cut.
		ordered = ordered[len(ordered)-limit:]
	}

	res := &TimelineResult{Scope: scope, Entries: ordered, Total: total}
	ref, head, _ := e.provenanceFor(ctx, nil)
	b := envelope.New().
		Data(res).
		WithProvenance(ref, head, nil).
		WithTruncation(total > len(ordered), len(ordered), total, "max-timeline")
	for _, w := range warnings {
		b.WarningWithCode(w.Code, w.Message)
	}
	return b.Build(), nil
}

// timelineEntry reads and shapes one commit's annotation for the timeline.
// ok is false when the commit has no annotation or the record says nothing
// about the scope.
func (e *Engine) timelineEntry(ctx context.Context, commit string, scope Scope) (output.TimelineEntry, []string, bool, error) {
	payload, err := e.backend.Read(ctx, commit)
	if err != nil {
		return output.TimelineEntry{}, nil, false, err
	}
	if payload == nil {
		return output.TimelineEntry{}, nil, false, nil
	}
	record, info, err := schema.Parse(payload)
	if err != nil {
		return output.TimelineEntry{}, nil, false, attachCommit(err, commit)
	}
	ann := record.CurrentView()

	_, best, _ := filterMarkers(ann.Markers, scope, e.cfg.Query.FuzzyAnchorDistance)
	if scope.Anchor != "" && best == matchNone {
		return output.TimelineEntry{}, nil, false, nil
	}

	wp := ann.Provenance.WritePath
	conf := scoreConfidence(confidenceInput{
		Age:       e.now().Sub(ann.CreatedAt),
		WritePath: wp,
		Anchor:    best,
		Migrated:  info.Migrated(),
	})

	tag := info.MigratedFrom
	if tag == "" {
		tag = schema.CurrentTag
	}
	entry := output.TimelineEntry{
		Commit:      commit,
		Time:        ann.CreatedAt.UTC().Format(time.RFC3339),
		Author:      ann.Provenance.Author,
		Summary:     ann.Narrative.Summary,
		WritePath:   string(wp),
		Schema:      tag,
		Synthesized: wp == schema.WritePathSquashSynthesized || wp == schema.WritePathAmendMigrated,
		Confidence:  conf.Score,
	}
	return entry, ann.Provenance.SourceCommits, true, nil
}
