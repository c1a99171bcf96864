package output

import (
	"sort"
)

// SortDependents sorts dependents by file ASC, line ASC, commit ASC.
func SortDependents(deps []Dependent) {
	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].File != deps[j].File {
			return deps[i].File < deps[j].File
		}
		if deps[i].Line != deps[j].Line {
			return deps[i].Line < deps[j].Line
		}
		return deps[i].Commit < deps[j].Commit
	})
}

// SortTimeline sorts entries chronologically, commit ASC as tiebreak. Time
// values are RFC 3339 strings, so lexical order is chronological order.
func SortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Time != entries[j].Time {
			return entries[i].Time < entries[j].Time
		}
		return entries[i].Commit < entries[j].Commit
	})
}

// SortAnchorSummaries sorts summaries by file ASC, anchor ASC.
func SortAnchorSummaries(sums []AnchorSummary) {
	sort.SliceStable(sums, func(i, j int) bool {
		if sums[i].File != sums[j].File {
			return sums[i].File < sums[j].File
		}
		return sums[i].Anchor < sums[j].Anchor
	})
}

// SortMarkerHits sorts markers by kind priority, file ASC, anchor ASC.
func SortMarkerHits(hits []MarkerHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		iPriority := GetMarkerKindPriority(hits[i].Kind)
		jPriority := GetMarkerKindPriority(hits[j].Kind)
		if iPriority != jPriority {
			return iPriority < jPriority
		}
		if hits[i].File != hits[j].File {
			return hits[i].File < hits[j].File
		}
		return hits[i].Anchor < hits[j].Anchor
	})
}
