package annotate

import (
	"bytes"
	"encoding/json"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

// Input is the caller-facing annotation content: everything the writer
// supplies, nothing lore stamps itself. The live CLI path, the batch agent
// path, and rewrite synthesis all produce this same shape.
type Input struct {
	Narrative schema.Narrative  `json:"narrative"`
	Markers   []schema.Marker   `json:"markers,omitempty"`
	Decisions []schema.Decision `json:"decisions,omitempty"`
	Effort    *schema.Effort    `json:"effort,omitempty"`
}

// DecodeInput parses the JSON input document supplied by an agent or read
// from --file. Unknown fields are rejected: a typoed field name silently
// dropping content is worse than an error.
func DecodeInput(data []byte) (Input, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var in Input
	if err := dec.Decode(&in); err != nil {
		return Input{}, lerrors.New(lerrors.ValidationFailed,
			"annotation input is not a valid input document", err)
	}
	return in, nil
}

// FromAnnotation extracts the writable content of an existing record, for
// synthesis paths that build a new input out of old annotations.
func FromAnnotation(a *schema.Annotation) Input {
	view := a.CurrentView()
	return Input{
		Narrative: view.Narrative,
		Markers:   view.Markers,
		Decisions: view.Decisions,
		Effort:    view.Effort,
	}
}
