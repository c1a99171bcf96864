package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// V1Annotation is the original flat region-list shape. It is kept only so
// stored payloads from that era keep parsing; nothing writes it anymore.
type V1Annotation struct {
	Schema    string    `json:"schema"`
	Commit    string    `json:"commit"`
	WrittenAt time.Time `json:"writtenAt"`
	// Origin is one of live, batch, backfill.
	Origin string `json:"origin,omitempty"`

	Regions      []V1Region  `json:"regions,omitempty"`
	CrossCutting []V1Concern `json:"crossCutting,omitempty"`
}

// V1Region annotated a code span with undifferentiated free text.
type V1Region struct {
	File      string `json:"file"`
	Symbol    string `json:"symbol,omitempty"`
	LineStart int    `json:"lineStart,omitempty"`
	LineEnd   int    `json:"lineEnd,omitempty"`

	Intent      string         `json:"intent,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Constraints []string       `json:"constraints,omitempty"`
	DependsOn   []V1Dependency `json:"dependsOn,omitempty"`
	RiskNotes   []string       `json:"riskNotes,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// V1Dependency pointed a region at another location it relied on.
type V1Dependency struct {
	File   string `json:"file"`
	Symbol string `json:"symbol,omitempty"`
	Note   string `json:"note,omitempty"`
}

// V1Concern recorded a cross-cutting observation spanning several files.
type V1Concern struct {
	Concern string   `json:"concern"`
	Why     string   `json:"why,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// liftV1 migrates a lore/v1 payload one step, to lore/v2. It is total over
// legal v1 documents: content with no structured home in v2 lands in
// provenance notes instead of being dropped.
func liftV1(raw []byte) ([]byte, error) {
	var v1 V1Annotation
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", TagV1, err)
	}

	v2 := V2Annotation{
		Schema:    TagV2,
		Commit:    v1.Commit,
		CreatedAt: v1.WrittenAt,
		Provenance: Provenance{
			WritePath: originToWritePath(v1.Origin),
		},
	}

	v2.Narrative = v1Narrative(v1.Regions)

	for _, r := range v1.Regions {
		lines := v1Lines(r)
		for _, c := range r.Constraints {
			v2.Markers = append(v2.Markers, Marker{
				Kind:        MarkerContract,
				File:        r.File,
				Anchor:      r.Symbol,
				Lines:       lines,
				Description: c,
				Basis:       BasisStated,
			})
		}
		for _, risk := range r.RiskNotes {
			v2.Markers = append(v2.Markers, Marker{
				Kind:        MarkerHazard,
				File:        r.File,
				Anchor:      r.Symbol,
				Lines:       lines,
				Description: risk,
			})
		}
		for _, dep := range r.DependsOn {
			desc := dep.Note
			if desc == "" {
				desc = "depends on " + LocationLabel(dep.File, dep.Symbol)
			}
			v2.Markers = append(v2.Markers, Marker{
				Kind:        MarkerDependency,
				File:        r.File,
				Anchor:      r.Symbol,
				Lines:       lines,
				Description: desc,
				Target:      &TargetRef{File: dep.File, Anchor: dep.Symbol},
				Assumption:  dep.Note,
			})
		}
	}

	for _, cc := range v1.CrossCutting {
		v2.Decisions = append(v2.Decisions, Decision{
			What:      cc.Concern,
			Why:       cc.Why,
			Stability: StabilityProvisional,
			Scope:     append([]string(nil), cc.Files...),
		})
	}

	if note := v1TagsNote(v1.Regions); note != "" {
		v2.Provenance.Notes = note
	}

	out, err := json.Marshal(&v2)
	if err != nil {
		return nil, fmt.Errorf("encoding %s document: %w", TagV2, err)
	}
	return out, nil
}

// v1Narrative seeds the v2 narrative from region free text. The first
// region's intent and reasoning become summary and motivation; later
// regions are appended as labeled lines so nothing is lost.
func v1Narrative(regions []V1Region) Narrative {
	var summary, motivation []string
	for _, r := range regions {
		label := LocationLabel(r.File, r.Symbol)
		if r.Intent != "" {
			if len(summary) == 0 {
				summary = append(summary, r.Intent)
			} else {
				summary = append(summary, label+": "+r.Intent)
			}
		}
		if r.Reasoning != "" {
			if len(motivation) == 0 {
				motivation = append(motivation, r.Reasoning)
			} else {
				motivation = append(motivation, label+": "+r.Reasoning)
			}
		}
	}
	n := Narrative{
		Summary:    strings.Join(summary, "\n"),
		Motivation: strings.Join(motivation, "\n"),
	}
	if n.Summary == "" {
		n.Summary = "(migrated from " + TagV1 + ": no summary recorded)"
	}
	return n
}

// v1Lines converts the v1 start/end pair. Zero means absent; a bare start
// becomes a single-line range; an inverted pair is normalized to its span.
func v1Lines(r V1Region) *LineRange {
	if r.LineStart <= 0 && r.LineEnd <= 0 {
		return nil
	}
	start, end := r.LineStart, r.LineEnd
	if start <= 0 {
		start = end
	}
	if end <= 0 {
		end = start
	}
	if end < start {
		start, end = end, start
	}
	return &LineRange{Start: start, End: end}
}

// v1TagsNote preserves region tags, which have no v2 home, as a free-text
// provenance note keyed by location.
func v1TagsNote(regions []V1Region) string {
	var lines []string
	for _, r := range regions {
		if len(r.Tags) == 0 {
			continue
		}
		tags := append([]string(nil), r.Tags...)
		sort.Strings(tags)
		lines = append(lines, fmt.Sprintf("tags[%s]: %s", LocationLabel(r.File, r.Symbol), strings.Join(tags, ", ")))
	}
	return strings.Join(lines, "\n")
}

// originToWritePath maps the v1 origin vocabulary onto write paths.
func originToWritePath(origin string) WritePath {
	switch origin {
	case "live", "":
		return WritePathLive
	case "batch":
		return WritePathLLMBatch
	case "backfill":
		return WritePathBackfill
	default:
		// Unknown origins are preserved verbatim rather than guessed at.
		return WritePath(origin)
	}
}
