package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/output"
	"lore/internal/schema"
)

// DependentsResult is the inverse query answer: every annotation in the
// corpus that declares a dependency on the queried location.
type DependentsResult struct {
	File       string             `json:"file"`
	Anchor     string             `json:"anchor,omitempty"`
	Dependents []output.Dependent `json:"dependents"`
	Total      int                `json:"total"`
}

// Dependents answers "what assumes this code" by scanning dependency
// markers across the whole annotated corpus. The scan is served from the
// sqlite cache when available and falls back to a direct walk otherwise.
func (e *Engine) Dependents(ctx context.Context, file, anchor string) (*envelope.Response, error) {
	if file == "" {
		return nil, scopeError("dependents query names no file")
	}

	limit := e.cfg.Query.MaxDependents
	rows, total, warnings := e.dependentRows(ctx, file, anchor, limit)
	output.SortDependents(rows)

	res := &DependentsResult{
		File:       file,
		Anchor:     anchor,
		Dependents: rows,
		Total:      total,
	}

	ref, head, _ := e.provenanceFor(ctx, nil)
	b := envelope.New().
		Data(res).
		WithProvenance(ref, head, nil).
		WithTruncation(total > len(rows), len(rows), total, "max-dependents")
	for _, w := range warnings {
		b.WarningWithCode(w.Code, w.Message)
	}
	if len(rows) > 0 {
		b.SuggestCall(fmt.Sprintf("lore explain %s", rows[0].File),
			"dependents record assumptions worth reading before a change")
	}
	return b.Build(), nil
}

// dependentRows serves the inverse lookup, preferring the cache. Cache
// trouble degrades to a corpus scan with a warning; it never fails the
// query.
func (e *Engine) dependentRows(ctx context.Context, file, anchor string, limit int) ([]output.Dependent, int, []envelope.Warning) {
	var warnings []envelope.Warning

	if e.index != nil {
		rows, total, err := e.cachedDependents(ctx, file, anchor, limit)
		if err == nil {
			return rows, total, nil
		}
		warnings = append(warnings, envelope.Warning{
			Code:    "index-unavailable",
			Message: fmt.Sprintf("dependency index unavailable, scanned the corpus directly: %v", err),
		})
		e.logger.Warn("dependency index unavailable", "error", err)
	}

	rows, total, err := e.scannedDependents(ctx, file, anchor, limit)
	if err != nil {
		warnings = append(warnings, envelope.Warning{
			Code:    "dependents-unavailable",
			Message: fmt.Sprintf("inverse-dependency scan failed: %v", err),
		})
		return nil, 0, warnings
	}
	return rows, total, warnings
}

func (e *Engine) cachedDependents(ctx context.Context, file, anchor string, limit int) ([]output.Dependent, int, error) {
	if _, err := e.index.RefreshIfStale(ctx); err != nil {
		return nil, 0, err
	}
	// Fetch file-level and filter anchors here so cached and scanned
	// results use the same matching rules.
	cached, _, err := e.index.Dependents(ctx, file, "", 0)
	if err != nil {
		return nil, 0, err
	}

	var rows []output.Dependent
	total := 0
	for _, c := range cached {
		if !targetMatches(schema.TargetRef{File: c.TargetFile, Anchor: c.TargetAnchor}, file, anchor) {
			continue
		}
		total++
		if limit > 0 && len(rows) >= limit {
			continue
		}
		rows = append(rows, output.Dependent{
			File:       c.SourceFile,
			Anchor:     c.SourceAnchor,
			Commit:     c.Commit,
			Assumption: c.Assumption,
			Summary:    c.Summary,
			Confidence: dependentScore(e.now().Sub(c.CreatedAt), schema.WritePath(c.WritePath)),
		})
	}
	return rows, total, nil
}

// scannedDependents is the uncached path: walk every annotated commit and
// collect dependency markers whose target matches.
func (e *Engine) scannedDependents(ctx context.Context, file, anchor string, limit int) ([]output.Dependent, int, error) {
	type hit struct {
		dep output.Dependent
		at  time.Time
	}
	var hits []hit

	_, err := e.scanCorpus(ctx, func(ch corpusHit) {
		for _, m := range ch.ann.Markers {
			if m.Kind != schema.MarkerDependency || m.Target == nil {
				continue
			}
			if !targetMatches(*m.Target, file, anchor) {
				continue
			}
			hits = append(hits, hit{
				dep: output.Dependent{
					File:       m.File,
					Anchor:     m.Anchor,
					Commit:     ch.commit,
					Assumption: m.Assumption,
					Summary:    ch.ann.Narrative.Summary,
					Confidence: dependentScore(e.now().Sub(ch.ann.CreatedAt), ch.ann.Provenance.WritePath),
				},
				at: ch.ann.CreatedAt,
			})
		}
	})
	if err != nil {
		return nil, 0, err
	}

	// Recency decides what survives the cap; the caller orders the rows
	// that survive for presentation.
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].at.Equal(hits[j].at) {
			return hits[i].at.After(hits[j].at)
		}
		return hits[i].dep.Commit < hits[j].dep.Commit
	})

	total := len(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	rows := make([]output.Dependent, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, h.dep)
	}
	return rows, total, nil
}

// targetMatches compares a dependency target to the queried location. File
// must match exactly; anchors match exactly or by unqualified name.
func targetMatches(target schema.TargetRef, file, anchor string) bool {
	if target.File != file {
		return false
	}
	if anchor == "" {
		return true
	}
	if target.Anchor == anchor {
		return true
	}
	return target.Anchor != "" && lastSegment(target.Anchor) == lastSegment(anchor)
}

// dependentScore is the reduced confidence used for inverse rows: age and
// write path only, since the dependent's own anchor matched by definition.
func dependentScore(age time.Duration, wp schema.WritePath) float64 {
	in := confidenceInput{Age: age, WritePath: wp, Anchor: matchExact}
	return scoreConfidence(in).Score
}

func scopeError(msg string) error {
	return lerrors.New(lerrors.ScopeInvalid, msg, nil)
}
