package version

import (
	"strings"
	"testing"
)

func TestStringStampedBuild(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	defer func() { Version, Commit, BuildDate = origVersion, origCommit, origDate }()

	Version = "1.2.3"
	Commit = "abcdef1234567890"
	BuildDate = "2026-01-15"

	got := String()
	if !strings.HasPrefix(got, "1.2.3") {
		t.Errorf("String() = %q, want the semantic version first", got)
	}
	if !strings.Contains(got, "abcdef1") {
		t.Errorf("String() = %q, want the short commit", got)
	}
	if strings.Contains(got, "abcdef12") {
		t.Errorf("String() = %q, commit should truncate to 7 chars", got)
	}
	if !strings.Contains(got, "2026-01-15") {
		t.Errorf("String() = %q, want the build date", got)
	}
}

func TestStringShortCommitKeptWhole(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	defer func() { Version, Commit, BuildDate = origVersion, origCommit, origDate }()

	Version = "2.0.0"
	Commit = "1234567"
	BuildDate = "2026-01-15"

	got := String()
	if !strings.Contains(got, "1234567") {
		t.Errorf("String() = %q, want the 7-char commit untruncated", got)
	}
}

func TestDefaultVersionIsSemver(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should not be empty")
	}
	if parts := strings.Split(Version, "."); len(parts) < 2 {
		t.Errorf("Version %q doesn't look like semver", Version)
	}
}
