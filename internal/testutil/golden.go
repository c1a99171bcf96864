// Package testutil holds shared test helpers: golden-file comparison with
// an -update flag and envelope normalization for snapshot-stable output.
package testutil

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// updateGolden controls whether golden files should be rewritten.
// Use: go test ./... -run TestGolden -update
var updateGolden = flag.Bool("update", false, "update golden files")

// ShouldUpdate returns true if golden files should be updated.
func ShouldUpdate() bool {
	return *updateGolden
}

// GoldenPath returns the location of a named golden file under the
// package's testdata directory.
func GoldenPath(name string) string {
	return filepath.Join("testdata", "golden", name)
}

// CompareGolden compares got against the named golden file, failing with a
// diff on mismatch. With -update the golden file is rewritten instead.
func CompareGolden(t *testing.T, name string, got []byte) {
	t.Helper()

	path := GoldenPath(name)
	if *updateGolden {
		UpdateGolden(t, name, got)
		t.Logf("updated golden: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("golden file missing: %s\n\ngot:\n%s\n\nrun with -update to create it", path, got)
		}
		t.Fatalf("reading golden file: %v", err)
	}

	if !bytes.Equal(got, expected) {
		diff := lineDiff(string(expected), string(got))
		if diff == "" {
			diff = "(content differs only in trailing newline)\n"
		}
		t.Fatalf("golden mismatch for %s (-expected +got):\n%srun with -update to refresh", name, diff)
	}
}

// UpdateGolden writes data to the named golden file, creating parent
// directories as needed.
func UpdateGolden(t *testing.T, name string, data []byte) {
	t.Helper()

	path := GoldenPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating golden directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing golden file: %v", err)
	}
}

// lineDiff reports the lines that differ between expected and got. Matching
// lines anchor the walk, so a single inserted line does not cascade into a
// whole-file mismatch the way a positional comparison would.
func lineDiff(expected, got string) string {
	want := strings.Split(strings.TrimSuffix(expected, "\n"), "\n")
	have := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	// Longest-common-subsequence lengths from each (i, j) suffix pair,
	// filled back to front so the forward walk below can pick the
	// alignment that preserves the most matching lines.
	lcs := make([][]int, len(want)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(have)+1)
	}
	for i := len(want) - 1; i >= 0; i-- {
		for j := len(have) - 1; j >= 0; j-- {
			switch {
			case want[i] == have[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var b strings.Builder
	i, j := 0, 0
	run := false
	for i < len(want) || j < len(have) {
		switch {
		case i < len(want) && j < len(have) && want[i] == have[j]:
			run = false
			i++
			j++
		case i < len(want) && (j == len(have) || lcs[i+1][j] >= lcs[i][j+1]):
			if !run {
				fmt.Fprintf(&b, "@@ line %d\n", i+1)
				run = true
			}
			b.WriteString("-")
			b.WriteString(want[i])
			b.WriteString("\n")
			i++
		default:
			if !run {
				fmt.Fprintf(&b, "@@ line %d\n", j+1)
				run = true
			}
			b.WriteString("+")
			b.WriteString(have[j])
			b.WriteString("\n")
			j++
		}
	}
	return b.String()
}
