package query

import (
	"reflect"
	"testing"
	"time"

	"lore/internal/envelope"
	"lore/internal/schema"
)

func TestScoreConfidence(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name        string
		in          confidenceInput
		wantScore   float64
		wantTier    envelope.ConfidenceTier
		wantReasons []string
	}{
		{
			name:      "fresh live exact",
			in:        confidenceInput{Age: 0, WritePath: schema.WritePathLive, Anchor: matchExact},
			wantScore: 1.0,
			wantTier:  envelope.TierHigh,
		},
		{
			name:      "empty write path counts as live",
			in:        confidenceInput{Age: time.Hour, Anchor: matchExact},
			wantScore: 1.0,
			wantTier:  envelope.TierHigh,
		},
		{
			name:      "backfill pays on write path",
			in:        confidenceInput{WritePath: schema.WritePathBackfill, Anchor: matchExact},
			wantScore: 0.938,
			wantTier:  envelope.TierHigh,
		},
		{
			name:      "llm batch pays more",
			in:        confidenceInput{WritePath: schema.WritePathLLMBatch, Anchor: matchExact},
			wantScore: 0.9,
			wantTier:  envelope.TierHigh,
		},
		{
			name:        "fuzzy anchor",
			in:          confidenceInput{WritePath: schema.WritePathLive, Anchor: matchFuzzy},
			wantScore:   0.9,
			wantTier:    envelope.TierHigh,
			wantReasons: []string{"anchor-fuzzy-match"},
		},
		{
			name:      "line only anchor",
			in:        confidenceInput{WritePath: schema.WritePathLive, Anchor: matchLineOnly},
			wantScore: 0.925,
			wantTier:  envelope.TierHigh,
		},
		{
			name:        "unresolved anchor",
			in:          confidenceInput{WritePath: schema.WritePathLive, Anchor: matchMissing},
			wantScore:   0.85,
			wantTier:    envelope.TierHigh,
			wantReasons: []string{"anchor-unresolved"},
		},
		{
			name:        "migrated on read",
			in:          confidenceInput{WritePath: schema.WritePathLive, Anchor: matchExact, Migrated: true},
			wantScore:   0.985,
			wantTier:    envelope.TierHigh,
			wantReasons: []string{"not-natively-written"},
		},
		{
			name:        "synthesized",
			in:          confidenceInput{WritePath: schema.WritePathSquashSynthesized, Anchor: matchExact},
			wantScore:   0.97,
			wantTier:    envelope.TierHigh,
			wantReasons: []string{"not-natively-written"},
		},
		{
			name:      "half life halves the age factor",
			in:        confidenceInput{Age: 180 * day, WritePath: schema.WritePathLive, Anchor: matchExact},
			wantScore: 0.825,
			wantTier:  envelope.TierMedium,
		},
		{
			name:        "year old annotation",
			in:          confidenceInput{Age: 360 * day, WritePath: schema.WritePathLive, Anchor: matchExact},
			wantScore:   0.738,
			wantTier:    envelope.TierMedium,
			wantReasons: []string{"annotation-aged"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreConfidence(tt.in)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("Tier = %s, want %s", got.Tier, tt.wantTier)
			}
			if !reflect.DeepEqual(got.Reasons, tt.wantReasons) {
				t.Errorf("Reasons = %v, want %v", got.Reasons, tt.wantReasons)
			}
		})
	}
}

// Every degradation at once still produces a usable, explained score.
func TestScoreConfidenceCompounds(t *testing.T) {
	in := confidenceInput{
		Age:       360 * 24 * time.Hour,
		WritePath: schema.WritePathLLMBatch,
		Anchor:    matchFuzzy,
		Migrated:  true,
	}
	got := scoreConfidence(in)

	if got.Tier != envelope.TierLow {
		t.Errorf("Tier = %s (score %v), want low", got.Tier, got.Score)
	}
	want := []string{"annotation-aged", "anchor-fuzzy-match", "not-natively-written"}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", got.Reasons, want)
	}
}

func TestScoreConfidenceFactorBreakdown(t *testing.T) {
	got := scoreConfidence(confidenceInput{WritePath: schema.WritePathLive, Anchor: matchExact})

	want := []envelope.ConfidenceFactor{
		{Factor: "age", Status: "fresh", Impact: 0.35},
		{Factor: "write_path", Status: "live", Impact: 0.25},
		{Factor: "anchor_match", Status: "exact", Impact: 0.25},
		{Factor: "nativeness", Status: "native", Impact: 0.15},
	}
	if !reflect.DeepEqual(got.Factors, want) {
		t.Errorf("Factors = %+v, want %+v", got.Factors, want)
	}
}

func TestScoreConfidenceDeterministic(t *testing.T) {
	in := confidenceInput{
		Age:       91 * 24 * time.Hour,
		WritePath: schema.WritePathBackfill,
		Anchor:    matchUnqualified,
	}
	if a, b := scoreConfidence(in), scoreConfidence(in); !reflect.DeepEqual(a, b) {
		t.Errorf("same input, different outputs:\n%+v\n%+v", a, b)
	}
}

func TestAgeFactor(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{-time.Hour, 1.0}, // future-dated clamps instead of exceeding fresh
		{180 * day, 0.5},
		{360 * day, 0.25},
	}
	for _, tt := range tests {
		if got := ageFactor(tt.age); got != tt.want {
			t.Errorf("ageFactor(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestAgeStatus(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		age  time.Duration
		want string
	}{
		{10 * day, "fresh"},
		{30 * day, "fresh"},
		{31 * day, "aging"},
		{180 * day, "aging"},
		{181 * day, "old"},
	}
	for _, tt := range tests {
		if got := ageStatus(tt.age); got != tt.want {
			t.Errorf("ageStatus(%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}
