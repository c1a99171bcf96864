package main

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

func TestParseMarkerFlag(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want schema.Marker
	}{
		{
			name: "contract with anchor",
			raw:  "contract:internal/wal/writer.go#Flush:callers may not hold the segment lock",
			want: schema.Marker{
				Kind: schema.MarkerContract, File: "internal/wal/writer.go", Anchor: "Flush",
				Description: "callers may not hold the segment lock",
			},
		},
		{
			name: "hazard file only",
			raw:  "hazard:internal/retry/loop.go:backoff is not jittered",
			want: schema.Marker{
				Kind: schema.MarkerHazard, File: "internal/retry/loop.go",
				Description: "backoff is not jittered",
			},
		},
		{
			name: "line range",
			raw:  "unstable:internal/api/limits.go@40-55:constants change with the billing plan",
			want: schema.Marker{
				Kind: schema.MarkerUnstable, File: "internal/api/limits.go",
				Lines:       &schema.LineRange{Start: 40, End: 55},
				Description: "constants change with the billing plan",
			},
		},
		{
			name: "description keeps its colons",
			raw:  "contract:a.go#F:invariant: order is FIFO: always",
			want: schema.Marker{
				Kind: schema.MarkerContract, File: "a.go", Anchor: "F",
				Description: "invariant: order is FIFO: always",
			},
		},
		{
			name: "dependency with arrow",
			raw:  "dependency:internal/api/handler.go#Commit->internal/wal/writer.go#Flush:Flush is durable on return",
			want: schema.Marker{
				Kind: schema.MarkerDependency, File: "internal/api/handler.go", Anchor: "Commit",
				Target:      &schema.TargetRef{File: "internal/wal/writer.go", Anchor: "Flush"},
				Assumption:  "Flush is durable on return",
				Description: "Flush is durable on return",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMarkerFlag(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tt.want.Kind || got.File != tt.want.File || got.Anchor != tt.want.Anchor {
				t.Errorf("location = %s/%s/%s, want %s/%s/%s",
					got.Kind, got.File, got.Anchor, tt.want.Kind, tt.want.File, tt.want.Anchor)
			}
			if got.Description != tt.want.Description {
				t.Errorf("Description = %q, want %q", got.Description, tt.want.Description)
			}
			if got.Assumption != tt.want.Assumption {
				t.Errorf("Assumption = %q, want %q", got.Assumption, tt.want.Assumption)
			}
			if (got.Lines == nil) != (tt.want.Lines == nil) {
				t.Fatalf("Lines = %v, want %v", got.Lines, tt.want.Lines)
			}
			if got.Lines != nil && *got.Lines != *tt.want.Lines {
				t.Errorf("Lines = %+v, want %+v", *got.Lines, *tt.want.Lines)
			}
			if (got.Target == nil) != (tt.want.Target == nil) {
				t.Fatalf("Target = %v, want %v", got.Target, tt.want.Target)
			}
			if got.Target != nil && *got.Target != *tt.want.Target {
				t.Errorf("Target = %+v, want %+v", *got.Target, *tt.want.Target)
			}
		})
	}
}

func TestParseMarkerFlag_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing parts", "contract:onlylocation", "expected kind:location:description"},
		{"empty description", "hazard:a.go:  ", "description is empty"},
		{"no file", "contract:#Flush:desc", "location names no file"},
		{"bad line range", "contract:a.go@9-3:desc", "not ordered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMarkerFlag(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
			var le *lerrors.LoreError
			if !errors.As(err, &le) || le.Code != lerrors.ValidationFailed {
				t.Errorf("error code = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestParseDecisionFlag(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want schema.Decision
	}{
		{
			name: "what and why",
			raw:  "single flush goroutine :: lock ordering was unprovable",
			want: schema.Decision{What: "single flush goroutine", Why: "lock ordering was unprovable"},
		},
		{
			name: "with stability",
			raw:  "sqlite for the cache :: zero-ops embedded store :: permanent",
			want: schema.Decision{What: "sqlite for the cache", Why: "zero-ops embedded store", Stability: schema.StabilityPermanent},
		},
		{
			name: "with revisit",
			raw:  "poll the ref :: no inotify on the CI image :: provisional :: 2026-06-01",
			want: schema.Decision{What: "poll the ref", Why: "no inotify on the CI image",
				Stability: schema.StabilityProvisional, Revisit: "2026-06-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDecisionFlag(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decision = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDecisionFlag_Errors(t *testing.T) {
	for _, raw := range []string{
		"only a what",
		"a :: b :: c :: d :: e",
	} {
		if _, err := parseDecisionFlag(raw); err == nil {
			t.Errorf("parseDecisionFlag(%q) should fail", raw)
		}
	}
}

func TestParseLineRange(t *testing.T) {
	r, err := parseLineRange("40-55", "-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start != 40 || r.End != 55 {
		t.Errorf("range = %+v, want 40-55", r)
	}

	r, err = parseLineRange("80:80", ":")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Start != 80 || r.End != 80 {
		t.Errorf("range = %+v, want 80:80", r)
	}
}

func TestParseLineRange_Errors(t *testing.T) {
	tests := []struct {
		s   string
		sep string
	}{
		{"40", "-"},    // no separator
		{"x-5", "-"},   // start not a number
		{"5-y", "-"},   // end not a number
		{"9-3", "-"},   // unordered
		{"0-4", "-"},   // lines are 1-based
		{"80-90", ":"}, // wrong separator
	}

	for _, tt := range tests {
		if _, err := parseLineRange(tt.s, tt.sep); err == nil {
			t.Errorf("parseLineRange(%q, %q) should fail", tt.s, tt.sep)
		}
	}
}

func TestParseWritePath(t *testing.T) {
	for _, s := range []string{"live", "llm-batch", "backfill"} {
		wp, err := parseWritePath(s)
		if err != nil {
			t.Errorf("parseWritePath(%q) failed: %v", s, err)
		}
		if string(wp) != s {
			t.Errorf("parseWritePath(%q) = %q", s, wp)
		}
	}

	// Synthesis write paths are stamped by the synthesizer, never accepted
	// from the flag.
	for _, s := range []string{"squash-synthesized", "amend-migrated", "schema-migrated", "manual", ""} {
		if _, err := parseWritePath(s); err == nil {
			t.Errorf("parseWritePath(%q) should fail", s)
		}
	}
}

func TestScopeFor(t *testing.T) {
	scope, err := scopeFor("/repo", []string{"internal/wal/writer.go"}, "Flush", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Anchor != "Flush" || len(scope.Files) != 1 {
		t.Errorf("scope = %+v", scope)
	}

	scope, err = scopeFor("/repo", []string{"a.go"}, "", "80:120")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Lines == nil || scope.Lines.Start != 80 || scope.Lines.End != 120 {
		t.Errorf("scope.Lines = %+v, want 80-120", scope.Lines)
	}

	// Path arguments are rebased to the stored repo-relative form.
	scope, err = scopeFor("/repo", []string{"./internal/wal/writer.go"}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Files[0] != "internal/wal/writer.go" {
		t.Errorf("file = %q, want cleaned repo-relative path", scope.Files[0])
	}
}

func TestScopeFor_Invalid(t *testing.T) {
	_, err := scopeFor("/repo", []string{"a.go"}, "", "120:80")
	if err == nil {
		t.Fatal("expected error for unordered range")
	}
	var le *lerrors.LoreError
	if !errors.As(err, &le) || le.Code != lerrors.ScopeInvalid {
		t.Errorf("error code = %v, want SCOPE_INVALID", err)
	}

	if _, err := scopeFor("/repo", nil, "", ""); err == nil {
		t.Fatal("expected error for empty scope")
	}
}
