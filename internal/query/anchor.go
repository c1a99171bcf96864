package query

import "strings"

// anchorMatch classifies how a marker's anchor relates to the queried one.
// The ladder runs exact, unqualified, fuzzy, then line overlap; queries
// without an anchor use matchLineOnly or matchMissing directly.
type anchorMatch int

const (
	matchNone anchorMatch = iota
	matchExact
	matchUnqualified
	matchFuzzy
	matchLineOnly
	matchMissing
)

func (m anchorMatch) String() string {
	switch m {
	case matchExact:
		return "exact"
	case matchUnqualified:
		return "unqualified"
	case matchFuzzy:
		return "fuzzy"
	case matchLineOnly:
		return "line-only"
	case matchMissing:
		return "missing"
	default:
		return "none"
	}
}

// matchAnchor runs the name ladder between a marker's recorded anchor and
// the queried one. maxDistance bounds the fuzzy step; 0 disables it.
func matchAnchor(marker, queried string, maxDistance int) anchorMatch {
	if marker == "" || queried == "" {
		return matchNone
	}
	if marker == queried {
		return matchExact
	}
	if lastSegment(marker) == lastSegment(queried) {
		return matchUnqualified
	}
	if maxDistance > 0 && editDistance(lastSegment(marker), lastSegment(queried)) <= maxDistance {
		return matchFuzzy
	}
	return matchNone
}

// lastSegment strips qualification: "pkg.Type.Method" and "pkg::fn" both
// reduce to their final name component.
func lastSegment(anchor string) string {
	s := anchor
	for _, sep := range []string{"::", ".", "/"} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return s
}

// editDistance is the Levenshtein distance between two anchor names. The
// inputs are short identifiers, so the quadratic table is fine.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
