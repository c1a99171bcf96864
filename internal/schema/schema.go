// Package schema defines the versioned annotation record types and the
// single parse/migrate chokepoint that turns stored note payloads into the
// canonical in-memory record. Every component reads stored bytes through
// Parse; nothing else in the repo deserializes annotation payloads.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Version tags carried in the mandatory top-level "schema" field.
const (
	Namespace = "lore"

	TagV1 = "lore/v1"
	TagV2 = "lore/v2"
	TagV3 = "lore/v3"

	// CurrentTag is the canonical version all reads migrate to.
	CurrentTag = TagV3
)

// MarkerKind classifies a location-grounded fact.
type MarkerKind string

const (
	// MarkerContract records a behavioral invariant that must hold
	MarkerContract MarkerKind = "contract"
	// MarkerHazard records a non-obvious risk
	MarkerHazard MarkerKind = "hazard"
	// MarkerDependency records an assumption about another location
	MarkerDependency MarkerKind = "dependency"
	// MarkerUnstable flags code expected to churn
	MarkerUnstable MarkerKind = "unstable"
	// MarkerDeprecated flags code on the way out
	MarkerDeprecated MarkerKind = "deprecated"
)

// ContractBasis records where a contract claim comes from.
type ContractBasis string

const (
	BasisStated   ContractBasis = "stated"
	BasisInferred ContractBasis = "inferred"
	BasisTested   ContractBasis = "tested"
)

// Stability grades how settled a decision is.
type Stability string

const (
	StabilityPermanent    Stability = "permanent"
	StabilityProvisional  Stability = "provisional"
	StabilityExperimental Stability = "experimental"
)

// WritePath records how an annotation was produced.
type WritePath string

const (
	WritePathLive             WritePath = "live"
	WritePathLLMBatch         WritePath = "llm-batch"
	WritePathBackfill         WritePath = "backfill"
	WritePathSquashSynthesized WritePath = "squash-synthesized"
	WritePathAmendMigrated    WritePath = "amend-migrated"
	WritePathSchemaMigrated   WritePath = "schema-migrated"
)

// LineRange is a 1-based inclusive line span.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the range is usable (start <= end, both positive).
func (r LineRange) Valid() bool {
	return r.Start > 0 && r.End >= r.Start
}

// Overlaps reports whether two ranges share any line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// TargetRef points a dependency marker at another location.
type TargetRef struct {
	File   string `json:"file"`
	Anchor string `json:"anchor,omitempty"`
}

// Marker is a fact grounded to a (file, optional anchor, optional line
// range) location. The location fields are best-effort pointers: a marker
// with no anchor and no lines is still valid (file-wide or commit-wide).
type Marker struct {
	Kind   MarkerKind `json:"kind"`
	File   string     `json:"file,omitempty"`
	Anchor string     `json:"anchor,omitempty"`
	Lines  *LineRange `json:"lines,omitempty"`

	Description string `json:"description"`

	// Basis is set for contract markers
	Basis ContractBasis `json:"basis,omitempty"`

	// Target and Assumption are set for dependency markers
	Target     *TargetRef `json:"target,omitempty"`
	Assumption string     `json:"assumption,omitempty"`

	// Replacement is set for deprecated markers
	Replacement string `json:"replacement,omitempty"`
}

// LocationKey returns a stable identity for dedup by exact location+payload.
func (m Marker) LocationKey() string {
	var b strings.Builder
	b.WriteString(string(m.Kind))
	b.WriteByte('|')
	b.WriteString(m.File)
	b.WriteByte('|')
	b.WriteString(m.Anchor)
	b.WriteByte('|')
	if m.Lines != nil {
		b.WriteString(strconv.Itoa(m.Lines.Start))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(m.Lines.End))
	}
	b.WriteByte('|')
	b.WriteString(m.Description)
	b.WriteByte('|')
	b.WriteString(string(m.Basis))
	b.WriteByte('|')
	if m.Target != nil {
		b.WriteString(m.Target.File)
		b.WriteByte('#')
		b.WriteString(m.Target.Anchor)
	}
	b.WriteByte('|')
	b.WriteString(m.Assumption)
	b.WriteByte('|')
	b.WriteString(m.Replacement)
	return b.String()
}

// Alternative is a rejected approach recorded in the narrative.
type Alternative struct {
	Approach string `json:"approach"`
	Reason   string `json:"reason"`
}

// Narrative is the free-text heart of an annotation.
type Narrative struct {
	Summary      string        `json:"summary"`
	Motivation   string        `json:"motivation,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	FollowUp     string        `json:"followUp,omitempty"`
}

// Decision is a commit-level record of a design choice.
type Decision struct {
	What      string    `json:"what"`
	Why       string    `json:"why"`
	Stability Stability `json:"stability"`
	Revisit   string    `json:"revisit,omitempty"`
	Scope     []string  `json:"scope,omitempty"`
}

// Key returns a stable identity for union dedup.
func (d Decision) Key() string {
	return d.What + "|" + d.Why + "|" + string(d.Stability) + "|" + d.Revisit + "|" + strings.Join(d.Scope, ",")
}

// Effort links an annotation to external task tracking.
type Effort struct {
	TaskID string `json:"taskId"`
	Source string `json:"source,omitempty"`
}

// Provenance describes how a record was produced.
type Provenance struct {
	WritePath WritePath `json:"writePath"`
	Author    string    `json:"author,omitempty"`
	// SourceCommits lists the commits this record was derived from. They
	// stay listed even after the originals become unreachable.
	SourceCommits []string `json:"sourceCommits,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// Correction is an additive amendment to a previously stored annotation.
// Corrections never rewrite the original record; they are stored as
// separate documents appended after it and folded in at read time.
type Correction struct {
	Field       string    `json:"field"`
	OldValue    string    `json:"oldValue,omitempty"`
	NewValue    string    `json:"newValue"`
	Reason      string    `json:"reason,omitempty"`
	Author      string    `json:"author,omitempty"`
	CorrectedAt time.Time `json:"correctedAt"`
}

// Annotation is the canonical (lore/v3) in-memory record.
type Annotation struct {
	Schema    string    `json:"schema"`
	Commit    string    `json:"commit"`
	CreatedAt time.Time `json:"createdAt"`

	Narrative Narrative  `json:"narrative"`
	Markers   []Marker   `json:"markers,omitempty"`
	Decisions []Decision `json:"decisions,omitempty"`
	Effort    *Effort    `json:"effort,omitempty"`

	Provenance Provenance `json:"provenance"`

	// Corrections are parsed from appended documents (and from the inline
	// field older versions carried). They are never serialized into the
	// primary document.
	Corrections []Correction `json:"-"`
}

// Clone returns a deep copy.
func (a *Annotation) Clone() *Annotation {
	out := *a
	out.Markers = make([]Marker, len(a.Markers))
	for i, m := range a.Markers {
		out.Markers[i] = m
		if m.Lines != nil {
			lr := *m.Lines
			out.Markers[i].Lines = &lr
		}
		if m.Target != nil {
			tr := *m.Target
			out.Markers[i].Target = &tr
		}
	}
	out.Decisions = append([]Decision(nil), a.Decisions...)
	for i, d := range a.Decisions {
		out.Decisions[i].Scope = append([]string(nil), d.Scope...)
	}
	out.Narrative.Alternatives = append([]Alternative(nil), a.Narrative.Alternatives...)
	if a.Effort != nil {
		e := *a.Effort
		out.Effort = &e
	}
	out.Provenance.SourceCommits = append([]string(nil), a.Provenance.SourceCommits...)
	out.Corrections = append([]Correction(nil), a.Corrections...)
	return &out
}

// CurrentView returns a copy of the annotation with corrections folded in
// chronological order. The receiver is untouched; re-reading the raw record
// still shows pre-correction values.
func (a *Annotation) CurrentView() *Annotation {
	if len(a.Corrections) == 0 {
		return a.Clone()
	}

	view := a.Clone()
	ordered := append([]Correction(nil), a.Corrections...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CorrectedAt.Before(ordered[j].CorrectedAt)
	})
	for _, c := range ordered {
		applyCorrection(view, c)
	}
	return view
}

// applyCorrection sets the addressed field on the view. Unknown paths leave
// the view untouched; the correction itself remains visible in Corrections.
func applyCorrection(view *Annotation, c Correction) {
	switch c.Field {
	case "narrative.summary":
		view.Narrative.Summary = c.NewValue
	case "narrative.motivation":
		view.Narrative.Motivation = c.NewValue
	case "narrative.followUp":
		view.Narrative.FollowUp = c.NewValue
	}

	if idx, field, ok := indexedField(c.Field, "markers"); ok && idx < len(view.Markers) {
		switch field {
		case "description":
			view.Markers[idx].Description = c.NewValue
		case "assumption":
			view.Markers[idx].Assumption = c.NewValue
		case "replacement":
			view.Markers[idx].Replacement = c.NewValue
		}
	}

	if idx, field, ok := indexedField(c.Field, "decisions"); ok && idx < len(view.Decisions) {
		switch field {
		case "what":
			view.Decisions[idx].What = c.NewValue
		case "why":
			view.Decisions[idx].Why = c.NewValue
		case "stability":
			view.Decisions[idx].Stability = Stability(c.NewValue)
		case "revisit":
			view.Decisions[idx].Revisit = c.NewValue
		}
	}

	if c.Field == "effort.taskId" {
		if view.Effort == nil {
			view.Effort = &Effort{}
		}
		view.Effort.TaskID = c.NewValue
	}
}

// indexedField parses paths like "markers[2].description".
func indexedField(path, prefix string) (idx int, field string, ok bool) {
	if !strings.HasPrefix(path, prefix+"[") {
		return 0, "", false
	}
	rest := path[len(prefix)+1:]
	close := strings.Index(rest, "].")
	if close < 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(rest[:close])
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, rest[close+2:], true
}

// LocationLabel renders a marker location for messages and notes.
func LocationLabel(file, anchor string) string {
	if anchor == "" {
		return file
	}
	return fmt.Sprintf("%s#%s", file, anchor)
}
