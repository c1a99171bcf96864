package annotate

import (
	"errors"
	"strings"
	"testing"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

func TestValidateInput(t *testing.T) {
	base := func() Input { return validInput() }

	tests := []struct {
		name      string
		mutate    func(*Input)
		wantField string
	}{
		{
			name:   "valid input passes",
			mutate: func(in *Input) {},
		},
		{
			name:      "blank summary",
			mutate:    func(in *Input) { in.Narrative.Summary = "  " },
			wantField: "narrative.summary",
		},
		{
			name:      "unknown marker kind",
			mutate:    func(in *Input) { in.Markers[0].Kind = "footgun" },
			wantField: "markers[0].kind",
		},
		{
			name:      "marker without description",
			mutate:    func(in *Input) { in.Markers[0].Description = "" },
			wantField: "markers[0].description",
		},
		{
			name: "inverted line range",
			mutate: func(in *Input) {
				in.Markers[0].Lines = &schema.LineRange{Start: 50, End: 10}
			},
			wantField: "markers[0].lines",
		},
		{
			name:      "unknown contract basis",
			mutate:    func(in *Input) { in.Markers[0].Basis = "vibes" },
			wantField: "markers[0].basis",
		},
		{
			name: "dependency marker without target",
			mutate: func(in *Input) {
				in.Markers = append(in.Markers, schema.Marker{
					Kind:        schema.MarkerDependency,
					File:        "internal/retry/loop.go",
					Description: "depends on something unnamed",
				})
			},
			wantField: "markers[1].target.file",
		},
		{
			name:      "decision without why",
			mutate:    func(in *Input) { in.Decisions[0].Why = "" },
			wantField: "decisions[0].why",
		},
		{
			name:      "unknown stability",
			mutate:    func(in *Input) { in.Decisions[0].Stability = "forever" },
			wantField: "decisions[0].stability",
		},
		{
			name:      "effort without task id",
			mutate:    func(in *Input) { in.Effort = &schema.Effort{} },
			wantField: "effort.taskId",
		},
		{
			name: "alternative without approach",
			mutate: func(in *Input) {
				in.Narrative.Alternatives = []schema.Alternative{{Reason: "too slow"}}
			},
			wantField: "narrative.alternatives[0].approach",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			err := validateInput(in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("validateInput() error = %v, want nil", err)
				}
				return
			}
			var lerr *lerrors.LoreError
			if !errors.As(err, &lerr) || lerr.Code != lerrors.ValidationFailed {
				t.Fatalf("validateInput() error = %v, want VALIDATION_FAILED", err)
			}
			if !strings.Contains(lerr.Message, tt.wantField) {
				t.Errorf("message %q does not mention %q", lerr.Message, tt.wantField)
			}
		})
	}
}

func TestDecodeInputRejectsUnknownFields(t *testing.T) {
	_, err := DecodeInput([]byte(`{"narrative":{"summary":"s"},"markerz":[]}`))
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.ValidationFailed {
		t.Fatalf("DecodeInput() error = %v, want VALIDATION_FAILED", err)
	}
}

func TestDecodeInputRoundTrip(t *testing.T) {
	in, err := DecodeInput([]byte(`{
		"narrative": {"summary": "Cap the backoff"},
		"markers": [{"kind": "hazard", "file": "a.go", "description": "ordering matters"}]
	}`))
	if err != nil {
		t.Fatalf("DecodeInput() error = %v", err)
	}
	if in.Narrative.Summary != "Cap the backoff" {
		t.Errorf("Summary = %q", in.Narrative.Summary)
	}
	if len(in.Markers) != 1 || in.Markers[0].Kind != schema.MarkerHazard {
		t.Errorf("Markers = %+v", in.Markers)
	}
}
