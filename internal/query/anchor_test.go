package query

import "testing"

func TestMatchAnchor(t *testing.T) {
	tests := []struct {
		name    string
		marker  string
		queried string
		maxDist int
		want    anchorMatch
	}{
		{name: "exact", marker: "nextDelay", queried: "nextDelay", maxDist: 2, want: matchExact},
		{name: "exact qualified", marker: "retry.Loop.nextDelay", queried: "retry.Loop.nextDelay", maxDist: 2, want: matchExact},
		{name: "unqualified marker", marker: "retry.nextDelay", queried: "nextDelay", maxDist: 2, want: matchUnqualified},
		{name: "unqualified query", marker: "nextDelay", queried: "retry.nextDelay", maxDist: 2, want: matchUnqualified},
		{name: "different qualifiers same tail", marker: "a.b.nextDelay", queried: "x::nextDelay", maxDist: 2, want: matchUnqualified},
		{name: "fuzzy within distance", marker: "nextDelay", queried: "nextDelei", maxDist: 2, want: matchFuzzy},
		{name: "fuzzy on tails", marker: "retry.nextDelay", queried: "nextDelei", maxDist: 2, want: matchFuzzy},
		{name: "beyond distance", marker: "nextDelay", queried: "computeBackoffWindow", maxDist: 2, want: matchNone},
		{name: "fuzzy disabled", marker: "nextDelay", queried: "nextDelei", maxDist: 0, want: matchNone},
		{name: "empty marker", marker: "", queried: "nextDelay", maxDist: 2, want: matchNone},
		{name: "empty query", marker: "nextDelay", queried: "", maxDist: 2, want: matchNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchAnchor(tt.marker, tt.queried, tt.maxDist); got != tt.want {
				t.Errorf("matchAnchor(%q, %q, %d) = %s, want %s",
					tt.marker, tt.queried, tt.maxDist, got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		anchor string
		want   string
	}{
		{"nextDelay", "nextDelay"},
		{"retry.nextDelay", "nextDelay"},
		{"retry.Loop.nextDelay", "nextDelay"},
		{"retry::next_delay", "next_delay"},
		{"internal/retry/loop", "loop"},
		{"pkg.Type/method", "method"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastSegment(tt.anchor); got != tt.want {
			t.Errorf("lastSegment(%q) = %q, want %q", tt.anchor, got, tt.want)
		}
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"nextDelay", "nextDelay", 0},
		{"nextDelay", "nextDelai", 1},
		{"nextDelay", "nextDelei", 2},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"spän", "span", 1},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAnchorMatchString(t *testing.T) {
	tests := []struct {
		m    anchorMatch
		want string
	}{
		{matchExact, "exact"},
		{matchUnqualified, "unqualified"},
		{matchFuzzy, "fuzzy"},
		{matchLineOnly, "line-only"},
		{matchMissing, "missing"},
		{matchNone, "none"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
