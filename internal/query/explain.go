package query

import (
	"context"
	"fmt"
	"time"

	"lore/internal/envelope"
	"lore/internal/knowledge"
	"lore/internal/output"
	"lore/internal/schema"
)

// ExplainResult is the read-by-scope answer: the annotations grounding the
// scope, the inverse dependents pointing at it, and the repo-wide knowledge
// covering its files.
type ExplainResult struct {
	Scope       Scope              `json:"scope"`
	Annotations []AnnotationView   `json:"annotations"`
	Dependents  []output.Dependent `json:"dependents,omitempty"`
	Knowledge   []knowledge.Entry  `json:"knowledge,omitempty"`
}

// AnnotationView is one annotation shaped for output: current view fields,
// scope-filtered markers, and the read-time quality blocks.
type AnnotationView struct {
	Commit        string               `json:"commit"`
	CreatedAt     string               `json:"createdAt"`
	Author        string               `json:"author,omitempty"`
	Schema        string               `json:"schema"`
	WritePath     string               `json:"writePath,omitempty"`
	Summary       string               `json:"summary"`
	Motivation    string               `json:"motivation,omitempty"`
	FollowUp      string               `json:"followUp,omitempty"`
	Alternatives  []schema.Alternative `json:"alternatives,omitempty"`
	Markers       []MarkerView         `json:"markers,omitempty"`
	Decisions     []schema.Decision    `json:"decisions,omitempty"`
	Corrections   int                  `json:"corrections,omitempty"`
	SourceCommits []string             `json:"sourceCommits,omitempty"`
	Confidence    *envelope.Confidence `json:"confidence,omitempty"`
	Freshness     *envelope.Freshness  `json:"freshness,omitempty"`
}

// MarkerView is a marker plus how it matched the queried scope.
type MarkerView struct {
	schema.Marker
	Match string `json:"match,omitempty"`
}

// Explain answers "why is this code the way it is" for a scope. Commits
// with no annotation are simply absent; an empty result is an answer, not
// an error.
func (e *Engine) Explain(ctx context.Context, scope Scope) (*envelope.Response, error) {
	started := time.Now()
	results, warnings, err := e.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	res := &ExplainResult{Scope: scope, Annotations: []AnnotationView{}}
	var top *envelope.Confidence
	var topFresh *envelope.Freshness
	for _, s := range results {
		conf := e.confidenceFor(s)
		fresh := e.freshnessFor(ctx, scope.Files[0], s)
		res.Annotations = append(res.Annotations, e.annotationView(s, conf, fresh))
		if top == nil || conf.Score > top.Score {
			top, topFresh = conf, fresh
		}
	}

	// Inverse dependents for the scope, capped like the standalone query.
	deps, _, depWarnings := e.dependentRows(ctx, scope.Files[0], scope.Anchor, e.cfg.Query.MaxDependents)
	res.Dependents = deps
	warnings = append(warnings, depWarnings...)

	if e.knowledge != nil {
		for _, file := range scope.Files {
			entries, kerr := e.knowledge.ForPath(ctx, file)
			if kerr != nil {
				warnings = append(warnings, envelope.Warning{
					Code:    "knowledge-unavailable",
					Message: fmt.Sprintf("knowledge store unreadable: %v", kerr),
				})
				break
			}
			res.Knowledge = appendUniqueEntries(res.Knowledge, entries)
		}
	}

	ref, head, schemas := e.provenanceFor(ctx, results)
	b := envelope.New().
		Data(res).
		WithConfidence(top).
		WithProvenance(ref, head, schemas)
	if topFresh != nil {
		b.WithFreshness(topFresh.CommitsSince, topFresh.Threshold)
	}
	for _, w := range warnings {
		b.WarningWithCode(w.Code, w.Message)
	}
	if len(res.Annotations) == 0 {
		b.SuggestCall("lore timeline "+scope.Label(), "no current annotations; history may still have context")
	} else {
		b.SuggestCall("lore dependents "+scope.Label(), "see what assumes this code before changing it")
	}

	e.logger.Debug("explain served",
		"scope", scope.Label(),
		"annotations", len(res.Annotations),
		"dependents", len(res.Dependents),
		"durationMs", time.Since(started).Milliseconds())
	return b.Build(), nil
}

func (e *Engine) annotationView(s scoped, conf *envelope.Confidence, fresh *envelope.Freshness) AnnotationView {
	tag := s.info.MigratedFrom
	if tag == "" {
		tag = schema.CurrentTag
	}

	markers := make([]MarkerView, 0, len(s.markers))
	for _, km := range s.markers {
		markers = append(markers, MarkerView{Marker: km.marker, Match: km.match.String()})
	}

	return AnnotationView{
		Commit:        s.commit,
		CreatedAt:     s.ann.CreatedAt.UTC().Format(time.RFC3339),
		Author:        s.ann.Provenance.Author,
		Schema:        tag,
		WritePath:     string(s.ann.Provenance.WritePath),
		Summary:       s.ann.Narrative.Summary,
		Motivation:    s.ann.Narrative.Motivation,
		FollowUp:      s.ann.Narrative.FollowUp,
		Alternatives:  s.ann.Narrative.Alternatives,
		Markers:       markers,
		Decisions:     s.ann.Decisions,
		Corrections:   len(s.ann.Corrections),
		SourceCommits: s.ann.Provenance.SourceCommits,
		Confidence:    conf,
		Freshness:     fresh,
	}
}

func appendUniqueEntries(have []knowledge.Entry, more []knowledge.Entry) []knowledge.Entry {
	seen := map[string]bool{}
	for _, e := range have {
		seen[e.ID] = true
	}
	for _, e := range more {
		if !seen[e.ID] {
			seen[e.ID] = true
			have = append(have, e)
		}
	}
	return have
}
