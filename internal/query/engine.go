// Package query is the read pipeline: it resolves a scope to the relevant
// annotated commits, migrates their records through the schema chokepoint,
// filters markers to the scope, and scores confidence and staleness from
// current repository state. It also serves the inverse-dependency, timeline,
// summary, and composite lookup queries.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"lore/internal/config"
	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/knowledge"
	"lore/internal/notes"
	"lore/internal/schema"
	"lore/internal/storage"
)

// KnowledgeSource yields the repo-wide entries whose scope covers a file.
// Explain and Lookup attach them to results; nil means no knowledge store
// is configured.
type KnowledgeSource interface {
	ForPath(ctx context.Context, file string) ([]knowledge.Entry, error)
}

// Options wires the optional collaborators into an engine.
type Options struct {
	// Index is the sqlite dependency cache; nil forces corpus scans.
	Index *storage.Index
	// Knowledge serves repo-wide entries for Explain and Lookup.
	Knowledge KnowledgeSource
	// Now overrides the clock; tests pin it.
	Now func() time.Time
}

// Engine coordinates all read queries over one repository.
type Engine struct {
	backend   notes.Backend
	cfg       *config.Config
	logger    *slog.Logger
	index     *storage.Index
	knowledge KnowledgeSource
	now       func() time.Time
}

// NewEngine creates a read engine. The backend must be bound to the
// annotation ref.
func NewEngine(backend notes.Backend, cfg *config.Config, logger *slog.Logger, opts Options) *Engine {
	e := &Engine{
		backend:   backend,
		cfg:       cfg,
		logger:    logger,
		index:     opts.Index,
		knowledge: opts.Knowledge,
		now:       opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// scoped is one annotated commit relevant to a scope: the migrated record,
// the markers that survived filtering, and how well the best one matched.
type scoped struct {
	commit  string
	ann     *schema.Annotation // corrections folded; Corrections kept for display
	info    schema.ParseInfo
	markers []markerMatch
	best    anchorMatch
}

type markerMatch struct {
	marker schema.Marker
	match  anchorMatch
}

// resolveScope runs steps one through three of the read pipeline: blame the
// scope to commits, dedupe, fetch and migrate each record, filter markers.
// Commits without notes are absent, not errors; a malformed note fails the
// query with the commit id attached.
func (e *Engine) resolveScope(ctx context.Context, scope Scope) ([]scoped, []envelope.Warning, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}

	var commits []string
	seen := map[string]bool{}
	for _, file := range scope.Files {
		start, end := 0, 0
		if scope.Lines != nil {
			start, end = scope.Lines.Start, scope.Lines.End
		}
		spans, err := e.backend.Blame(ctx, file, start, end)
		if err != nil {
			return nil, nil, err
		}
		for _, span := range spans {
			if !seen[span.Commit] {
				seen[span.Commit] = true
				commits = append(commits, span.Commit)
			}
		}
	}

	var warnings []envelope.Warning
	var results []scoped
	for _, commit := range commits {
		payload, err := e.backend.Read(ctx, commit)
		if err != nil {
			return nil, nil, err
		}
		if payload == nil {
			continue
		}
		record, info, err := schema.Parse(payload)
		if err != nil {
			return nil, nil, attachCommit(err, commit)
		}

		ann := record.CurrentView()
		markers, best, fuzzy := filterMarkers(ann.Markers, scope, e.cfg.Query.FuzzyAnchorDistance)
		if scope.Anchor != "" && best == matchNone {
			// Nothing in this record speaks to the queried anchor.
			continue
		}
		for _, f := range fuzzy {
			warnings = append(warnings, envelope.Warning{
				Code:    "anchor-fuzzy-match",
				Message: fmt.Sprintf("anchor %q matched recorded anchor %q approximately", scope.Anchor, f),
			})
		}

		results = append(results, scoped{
			commit:  commit,
			ann:     ann,
			info:    info,
			markers: markers,
			best:    best,
		})
	}

	// Newest first; explain and lookup want the most recent record on top.
	sort.Slice(results, func(i, j int) bool {
		if !results[i].ann.CreatedAt.Equal(results[j].ann.CreatedAt) {
			return results[i].ann.CreatedAt.After(results[j].ann.CreatedAt)
		}
		return results[i].commit < results[j].commit
	})
	return results, warnings, nil
}

// filterMarkers reduces a record's markers to those overlapping the scope
// and classifies each match. It returns the recorded anchors that matched
// fuzzily so the caller can warn. best == matchNone means the record says
// nothing about the scope and should be dropped.
func filterMarkers(markers []schema.Marker, scope Scope, fuzzyDist int) ([]markerMatch, anchorMatch, []string) {
	var inFile []schema.Marker
	for _, m := range markers {
		for _, f := range scope.Files {
			if m.File == f {
				inFile = append(inFile, m)
				break
			}
		}
	}

	var kept []markerMatch
	var fuzzy []string
	best := matchNone

	switch {
	case scope.Anchor != "":
		// Name ladder: exact beats unqualified beats fuzzy; markers with no
		// anchor at all only surface when nothing matched by name.
		byRung := map[anchorMatch][]markerMatch{}
		for _, m := range inFile {
			if m.Anchor == "" {
				byRung[matchLineOnly] = append(byRung[matchLineOnly], markerMatch{m, matchLineOnly})
				continue
			}
			rung := matchAnchor(m.Anchor, scope.Anchor, fuzzyDist)
			if rung == matchNone {
				continue
			}
			byRung[rung] = append(byRung[rung], markerMatch{m, rung})
		}
		for _, rung := range []anchorMatch{matchExact, matchUnqualified, matchFuzzy, matchLineOnly} {
			if len(byRung[rung]) > 0 {
				kept = byRung[rung]
				best = rung
				break
			}
		}
		if best == matchFuzzy {
			for _, km := range kept {
				fuzzy = append(fuzzy, km.marker.Anchor)
			}
		}
		// An anchor query drops records with nothing to say about the
		// anchor, whether they carry other markers or none at all.
		return kept, best, fuzzy

	case scope.Lines != nil:
		for _, m := range inFile {
			switch {
			case m.Lines != nil:
				if m.Lines.Overlaps(*scope.Lines) {
					kept = append(kept, markerMatch{m, matchLineOnly})
					best = matchLineOnly
				}
			default:
				// No lines recorded; the fact cannot be excluded from any
				// line range, so keep it at reduced confidence.
				kept = append(kept, markerMatch{m, matchMissing})
				if best == matchNone {
					best = matchMissing
				}
			}
		}

	default:
		for _, m := range inFile {
			rung := matchLineOnly
			if m.Anchor != "" {
				rung = matchExact
			}
			kept = append(kept, markerMatch{m, rung})
			if rung == matchExact || best == matchNone {
				best = rung
			}
		}
	}

	if best == matchNone {
		if len(inFile) > 0 {
			// Markers exist but none cover the queried lines.
			best = matchMissing
		} else {
			// Narrative-only record; the blame span is its only grounding.
			best = matchLineOnly
		}
	}
	return kept, best, fuzzy
}

// confidenceFor scores one scoped record at read time.
func (e *Engine) confidenceFor(s scoped) *envelope.Confidence {
	return scoreConfidence(confidenceInput{
		Age:       e.now().Sub(s.ann.CreatedAt),
		WritePath: s.ann.Provenance.WritePath,
		Anchor:    s.best,
		Migrated:  s.info.Migrated(),
	})
}

// freshnessFor computes the staleness block for a record against one file.
func (e *Engine) freshnessFor(ctx context.Context, file string, s scoped) *envelope.Freshness {
	since, err := commitsSince(ctx, e.backend, file, s.commit, s.ann.CreatedAt)
	if err != nil {
		e.logger.Debug("staleness unavailable", "file", file, "error", err)
		return nil
	}
	threshold := e.cfg.Query.StalenessThreshold
	return &envelope.Freshness{
		CommitsSince: since,
		Stale:        threshold > 0 && since > threshold,
		Threshold:    threshold,
	}
}

// provenanceFor builds the envelope provenance: the serving ref, HEAD at
// read time, and every schema version encountered.
func (e *Engine) provenanceFor(ctx context.Context, results []scoped) (string, string, []string) {
	head := ""
	if meta, err := e.backend.Head(ctx); err == nil {
		head = meta.Commit
	}
	seen := map[string]bool{}
	var schemas []string
	for _, s := range results {
		tag := s.info.MigratedFrom
		if tag == "" {
			tag = schema.CurrentTag
		}
		if !seen[tag] {
			seen[tag] = true
			schemas = append(schemas, tag)
		}
	}
	sort.Strings(schemas)
	return e.cfg.Notes.Ref, head, schemas
}

func attachCommit(err error, commit string) error {
	le, ok := err.(*lerrors.LoreError)
	if !ok {
		return err
	}
	return lerrors.New(le.Code, fmt.Sprintf("%s (commit %s)", le.Message, commit), le).
		WithDetails(lerrors.ParseDetails{Commit: commit})
}
