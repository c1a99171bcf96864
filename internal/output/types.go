package output

// Dependent is one inverse-dependency hit: an annotation somewhere in the
// repository that declares a dependency on the queried location.
type Dependent struct {
	File       string  `json:"file"`
	Anchor     string  `json:"anchor,omitempty"`
	Line       int     `json:"line,omitempty"`
	Commit     string  `json:"commit"`
	Assumption string  `json:"assumption,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TimelineEntry is one annotated commit in a location's history.
type TimelineEntry struct {
	Commit      string  `json:"commit"`
	Time        string  `json:"time"`
	Author      string  `json:"author,omitempty"`
	Summary     string  `json:"summary"`
	WritePath   string  `json:"writePath,omitempty"`
	Schema      string  `json:"schema,omitempty"`
	Synthesized bool    `json:"synthesized,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// AnchorSummary is the newest surviving annotation for one anchor within a
// file, stripped to a digest.
type AnchorSummary struct {
	File       string  `json:"file"`
	Anchor     string  `json:"anchor,omitempty"`
	Commit     string  `json:"commit"`
	Summary    string  `json:"summary"`
	Markers    int     `json:"markers,omitempty"`
	Decisions  int     `json:"decisions,omitempty"`
	Stale      bool    `json:"stale,omitempty"`
	Confidence float64 `json:"confidence"`
}

// MarkerHit is a marker surfaced by a query, carrying enough location
// context to render standalone.
type MarkerHit struct {
	Kind        string  `json:"kind"`
	File        string  `json:"file"`
	Anchor      string  `json:"anchor,omitempty"`
	Commit      string  `json:"commit"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}
