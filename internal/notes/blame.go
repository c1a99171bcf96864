package notes

import (
	"strconv"
	"strings"
)

// parseBlameSpans folds `git blame --porcelain` output into contiguous
// spans of final-file lines attributed to the same commit.
//
// Porcelain emits one header per blamed line of the form
//
//	<40-hex sha> <orig-line> <final-line> [<lines-in-group>]
//
// interleaved with metadata lines (author, summary, ...) and the content
// line itself prefixed with a tab. Only the headers matter here.
func parseBlameSpans(out []byte) []BlameSpan {
	var spans []BlameSpan
	var current *BlameSpan

	for _, line := range strings.Split(string(out), "\n") {
		if line == "" || line[0] == '\t' {
			continue
		}
		sha, finalLine, ok := parseBlameHeader(line)
		if !ok {
			continue
		}
		if current != nil && current.Commit == sha && finalLine == current.End+1 {
			current.End = finalLine
			continue
		}
		if current != nil {
			spans = append(spans, *current)
		}
		current = &BlameSpan{Commit: sha, Start: finalLine, End: finalLine}
	}
	if current != nil {
		spans = append(spans, *current)
	}
	return spans
}

// parseBlameHeader extracts the commit and final line number from a
// porcelain header line, rejecting metadata lines.
func parseBlameHeader(line string) (sha string, finalLine int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || !isCommitHash(fields[0]) {
		return "", 0, false
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return fields[0], n, true
}

// isCommitHash reports whether s is a full 40-character hex object id.
func isCommitHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
