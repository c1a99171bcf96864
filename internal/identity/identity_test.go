package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lore/internal/slogutil"
)

type staticSource string

func (s staticSource) UserIdentity(ctx context.Context) (string, error) {
	return string(s), nil
}

func writeAuthors(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authors.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveAppliesAliases(t *testing.T) {
	path := writeAuthors(t, `
[aliases]
"dana@corp.example" = "Dana Váradi <dana@example.com>"
"D.Varadi@oldcorp.example" = "Dana Váradi <dana@example.com>"
`)

	r, err := NewResolver(path, staticSource("Dana V <dana@corp.example>"), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := "Dana Váradi <dana@example.com>"; got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}

	// Alias keys match case-insensitively.
	if got := r.Canonical("D <d.varadi@OLDCORP.example>"); got != "Dana Váradi <dana@example.com>" {
		t.Errorf("Canonical() = %q", got)
	}
}

func TestResolvePassthroughWithoutAliasTable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "authors.toml")
	r, err := NewResolver(missing, staticSource("Rhys Ito <rhys@example.com>"), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("missing authors file should not be an error, got %v", err)
	}

	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "Rhys Ito <rhys@example.com>" {
		t.Errorf("Resolve() = %q, want passthrough", got)
	}
}

func TestNewResolverRejectsMalformedTable(t *testing.T) {
	path := writeAuthors(t, `aliases = "not a table"`)
	if _, err := NewResolver(path, staticSource("x"), slogutil.NewDiscardLogger()); err == nil {
		t.Fatal("expected error for malformed authors.toml")
	}
}

func TestSplitIdent(t *testing.T) {
	tests := []struct {
		ident string
		name  string
		email string
	}{
		{"Dana Váradi <dana@example.com>", "Dana Váradi", "dana@example.com"},
		{"<dana@example.com>", "", "dana@example.com"},
		{"just-a-name", "just-a-name", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, email := SplitIdent(tt.ident)
		if name != tt.name || email != tt.email {
			t.Errorf("SplitIdent(%q) = (%q, %q), want (%q, %q)", tt.ident, name, email, tt.name, tt.email)
		}
	}
}
