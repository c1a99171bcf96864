package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// V2Annotation introduced the narrative/marker/decision split but still
// carried the task reference as free text and corrections inline.
type V2Annotation struct {
	Schema    string    `json:"schema"`
	Commit    string    `json:"commit"`
	CreatedAt time.Time `json:"createdAt"`

	Narrative Narrative  `json:"narrative"`
	Markers   []Marker   `json:"markers,omitempty"`
	Decisions []Decision `json:"decisions,omitempty"`

	// Task is a free-text tracker reference ("PROJ-123", but also prose).
	Task string `json:"task,omitempty"`

	Provenance  Provenance   `json:"provenance"`
	Corrections []Correction `json:"corrections,omitempty"`
}

// liftV2 migrates a lore/v2 payload one step, to the canonical lore/v3.
// Task references that look like identifiers become structured effort
// links; prose tasks are preserved in provenance notes.
func liftV2(raw []byte) ([]byte, error) {
	var v2 V2Annotation
	if err := json.Unmarshal(raw, &v2); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", TagV2, err)
	}

	v3 := v3Document{
		Schema:      TagV3,
		Commit:      v2.Commit,
		CreatedAt:   v2.CreatedAt,
		Narrative:   v2.Narrative,
		Markers:     v2.Markers,
		Decisions:   v2.Decisions,
		Provenance:  v2.Provenance,
		Corrections: v2.Corrections,
	}

	if v2.Task != "" {
		if isTaskID(v2.Task) {
			v3.Effort = &Effort{TaskID: v2.Task, Source: "migrated"}
		} else {
			v3.Provenance.Notes = appendNote(v3.Provenance.Notes, "task: "+v2.Task)
		}
	}

	out, err := json.Marshal(&v3)
	if err != nil {
		return nil, fmt.Errorf("encoding %s document: %w", TagV3, err)
	}
	return out, nil
}

// isTaskID reports whether a task reference is identifier-like: short and
// free of whitespace.
func isTaskID(task string) bool {
	return len(task) <= 64 && !strings.ContainsAny(task, " \t\n")
}

// appendNote adds a line to a free-text note block.
func appendNote(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
