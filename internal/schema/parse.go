package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	lerrors "lore/internal/errors"
)

// migrationStep lifts a payload exactly one version. Steps are registered
// by source tag and composed by Parse; a v1 payload always passes through
// v2 on its way to canonical, it never skips.
type migrationStep struct {
	From string
	To   string
	Lift func(raw []byte) ([]byte, error)
}

var migrations = map[string]migrationStep{
	TagV1: {From: TagV1, To: TagV2, Lift: liftV1},
	TagV2: {From: TagV2, To: TagV3, Lift: liftV2},
}

// ParseInfo reports what Parse had to do to produce the canonical record.
type ParseInfo struct {
	// MigratedFrom is the stored version tag when it was older than
	// CurrentTag, empty when the payload was already canonical.
	MigratedFrom string
	// Steps lists the tags visited, oldest first, when migration ran.
	Steps []string
}

// Migrated reports whether the stored payload needed migration.
func (i ParseInfo) Migrated() bool {
	return i.MigratedFrom != ""
}

// v3Document is the serialized form of the canonical record. Freshly
// written documents never carry inline corrections (those are appended as
// separate documents), but documents lifted from v2 do.
type v3Document struct {
	Schema    string    `json:"schema"`
	Commit    string    `json:"commit"`
	CreatedAt time.Time `json:"createdAt"`

	Narrative Narrative  `json:"narrative"`
	Markers   []Marker   `json:"markers,omitempty"`
	Decisions []Decision `json:"decisions,omitempty"`
	Effort    *Effort    `json:"effort,omitempty"`

	Provenance  Provenance   `json:"provenance"`
	Corrections []Correction `json:"corrections,omitempty"`
}

// versionPeek reads only the version tag; the rest of the document may be
// any shape.
type versionPeek struct {
	Schema string `json:"schema"`
}

// PeekVersion returns the version tag of a payload's primary document
// without parsing the rest. Used by migration stats and the parse dispatch.
func PeekVersion(payload []byte) (string, error) {
	doc, _, err := splitDocuments(payload)
	if err != nil {
		return "", err
	}
	var peek versionPeek
	if err := json.Unmarshal(doc, &peek); err != nil {
		return "", lerrors.New(lerrors.MalformedPayload, "annotation payload is not a JSON object", err)
	}
	if peek.Schema == "" {
		return "", lerrors.New(lerrors.MalformedPayload, "annotation payload has no schema tag", nil)
	}
	return peek.Schema, nil
}

// Parse is the single entry point turning stored note bytes into the
// canonical record. It peeks the version tag, walks the registered
// migration chain step by step until the payload is canonical, then decodes
// it fully and folds in any appended correction documents.
func Parse(payload []byte) (*Annotation, ParseInfo, error) {
	doc, appended, err := splitDocuments(payload)
	if err != nil {
		return nil, ParseInfo{}, err
	}

	var peek versionPeek
	if err := json.Unmarshal(doc, &peek); err != nil {
		return nil, ParseInfo{}, lerrors.New(lerrors.MalformedPayload, "annotation payload is not a JSON object", err)
	}
	if peek.Schema == "" {
		return nil, ParseInfo{}, lerrors.New(lerrors.MalformedPayload, "annotation payload has no schema tag", nil)
	}

	info := ParseInfo{}
	tag := peek.Schema
	if tag != CurrentTag {
		info.MigratedFrom = tag
		info.Steps = []string{tag}
	}
	for tag != CurrentTag {
		step, ok := migrations[tag]
		if !ok {
			return nil, ParseInfo{}, lerrors.New(
				lerrors.UnknownSchemaVersion,
				fmt.Sprintf("no migration path from schema %q; upgrade lore to read this annotation", tag),
				nil,
			).WithDetails(lerrors.ParseDetails{Schema: tag})
		}
		doc, err = step.Lift(doc)
		if err != nil {
			return nil, ParseInfo{}, lerrors.New(lerrors.MalformedPayload,
				fmt.Sprintf("migrating annotation from %s to %s", step.From, step.To), err)
		}
		tag = step.To
		info.Steps = append(info.Steps, tag)
	}

	var stored v3Document
	if err := json.Unmarshal(doc, &stored); err != nil {
		return nil, ParseInfo{}, lerrors.New(lerrors.MalformedPayload, "decoding canonical annotation", err)
	}

	ann := &Annotation{
		Schema:      stored.Schema,
		Commit:      stored.Commit,
		CreatedAt:   stored.CreatedAt,
		Narrative:   stored.Narrative,
		Markers:     stored.Markers,
		Decisions:   stored.Decisions,
		Effort:      stored.Effort,
		Provenance:  stored.Provenance,
		Corrections: stored.Corrections,
	}
	ann.Corrections = append(ann.Corrections, appended...)
	return ann, info, nil
}

// Serialize renders the canonical record as stored note bytes: one compact
// primary document, then one compact document per correction, newline
// separated. Corrections never serialize into the primary document, so
// appending one later leaves the original bytes intact.
func Serialize(a *Annotation) ([]byte, error) {
	doc := v3Document{
		Schema:     CurrentTag,
		Commit:     a.Commit,
		CreatedAt:  a.CreatedAt,
		Narrative:  a.Narrative,
		Markers:    a.Markers,
		Decisions:  a.Decisions,
		Effort:     a.Effort,
		Provenance: a.Provenance,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&doc); err != nil {
		return nil, lerrors.New(lerrors.InternalError, "encoding annotation", err)
	}
	for _, c := range a.Corrections {
		if err := enc.Encode(&c); err != nil {
			return nil, lerrors.New(lerrors.InternalError, "encoding correction", err)
		}
	}
	return buf.Bytes(), nil
}

// AppendCorrection returns the stored payload with one more correction
// document appended. The existing bytes are untouched; a reader diffing the
// before and after payloads sees pure suffix growth.
func AppendCorrection(payload []byte, c Correction) ([]byte, error) {
	if _, _, err := Parse(payload); err != nil {
		return nil, err
	}

	out := append([]byte(nil), payload...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&c); err != nil {
		return nil, lerrors.New(lerrors.InternalError, "encoding correction", err)
	}
	return append(out, buf.Bytes()...), nil
}

// splitDocuments separates the primary document from appended correction
// documents. The payload is a stream of concatenated JSON values.
func splitDocuments(payload []byte) (json.RawMessage, []Correction, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil, lerrors.New(lerrors.MalformedPayload, "annotation payload is empty", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var primary json.RawMessage
	if err := dec.Decode(&primary); err != nil {
		return nil, nil, lerrors.New(lerrors.MalformedPayload, "annotation payload is not valid JSON", err)
	}

	var appended []Correction
	for {
		var c Correction
		if err := dec.Decode(&c); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, lerrors.New(lerrors.MalformedPayload, "invalid correction document", err)
		}
		appended = append(appended, c)
	}
	return primary, appended, nil
}
