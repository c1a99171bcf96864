package query

import (
	"context"
	"time"

	"lore/internal/envelope"
	"lore/internal/knowledge"
	"lore/internal/output"
	"lore/internal/schema"
)

// LookupResult bundles what a caller wants before touching code: the
// contracts and hazards in force, the decisions behind the shape, recent
// history, and staleness in one call instead of four.
type LookupResult struct {
	Scope     Scope               `json:"scope"`
	Contracts []output.MarkerHit  `json:"contracts,omitempty"`
	Hazards   []output.MarkerHit  `json:"hazards,omitempty"`
	Decisions []DecisionView      `json:"decisions,omitempty"`
	Recent    []RecentEntry       `json:"recent,omitempty"`
	Knowledge []knowledge.Entry   `json:"knowledge,omitempty"`
	Freshness *envelope.Freshness `json:"freshness,omitempty"`
}

// DecisionView is a decision plus the commit that recorded it.
type DecisionView struct {
	schema.Decision
	Commit string `json:"commit"`
}

// RecentEntry is a compact history line for the lookup bundle.
type RecentEntry struct {
	Commit  string `json:"commit"`
	Time    string `json:"time"`
	Summary string `json:"summary"`
}

// recentWindow caps the history slice inside a lookup; the full history
// stays one `lore timeline` away.
const recentWindow = 5

// Lookup serves the pre-edit composite: contracts, hazards, decisions,
// recent annotations, covering knowledge, and scope staleness in one call.
func (e *Engine) Lookup(ctx context.Context, scope Scope) (*envelope.Response, error) {
	results, warnings, err := e.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	res := &LookupResult{Scope: scope}
	var top *envelope.Confidence
	for _, s := range results {
		conf := e.confidenceFor(s)
		if top == nil || conf.Score > top.Score {
			top = conf
		}
		for _, km := range s.markers {
			hit := output.MarkerHit{
				Kind:        string(km.marker.Kind),
				File:        km.marker.File,
				Anchor:      km.marker.Anchor,
				Commit:      s.commit,
				Description: km.marker.Description,
				Confidence:  conf.Score,
			}
			switch km.marker.Kind {
			case schema.MarkerContract:
				res.Contracts = append(res.Contracts, hit)
			case schema.MarkerHazard:
				res.Hazards = append(res.Hazards, hit)
			}
		}
		for _, d := range s.ann.Decisions {
			res.Decisions = append(res.Decisions, DecisionView{Decision: d, Commit: s.commit})
		}
		if len(res.Recent) < recentWindow {
			res.Recent = append(res.Recent, RecentEntry{
				Commit:  s.commit,
				Time:    s.ann.CreatedAt.UTC().Format(time.RFC3339),
				Summary: s.ann.Narrative.Summary,
			})
		}
	}

	if len(results) > 0 {
		res.Freshness = e.freshnessFor(ctx, scope.Files[0], results[0])
	}

	if e.knowledge != nil {
		for _, file := range scope.Files {
			entries, kerr := e.knowledge.ForPath(ctx, file)
			if kerr != nil {
				warnings = append(warnings, envelope.Warning{
					Code:    "knowledge-unavailable",
					Message: "knowledge store unreadable",
				})
				break
			}
			res.Knowledge = appendUniqueEntries(res.Knowledge, entries)
		}
	}

	output.SortMarkerHits(res.Contracts)
	output.SortMarkerHits(res.Hazards)

	ref, head, schemas := e.provenanceFor(ctx, results)
	b := envelope.New().
		Data(res).
		WithConfidence(top).
		WithProvenance(ref, head, schemas)
	if res.Freshness != nil {
		b.WithFreshness(res.Freshness.CommitsSince, res.Freshness.Threshold)
	}
	for _, w := range warnings {
		b.WarningWithCode(w.Code, w.Message)
	}
	if len(res.Hazards) > 0 {
		b.SuggestCall("lore explain "+scope.Label(), "hazards present; read the full narratives first")
	}
	return b.Build(), nil
}
