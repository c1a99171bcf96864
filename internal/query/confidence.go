package query

import (
	"math"
	"time"

	"lore/internal/envelope"
	"lore/internal/schema"
)

// Confidence weighting. The four factors sum to 1.0 so a fresh, native,
// exactly anchored annotation scores exactly 1.0.
const (
	weightAge       = 0.35
	weightWritePath = 0.25
	weightAnchor    = 0.25
	weightNative    = 0.15

	// ageHalfLife is the age at which the recency factor halves.
	ageHalfLife = 180 * 24 * time.Hour
)

// confidenceInput is everything the score depends on. It is derived from
// read-time state only; scores are never stored.
type confidenceInput struct {
	Age       time.Duration
	WritePath schema.WritePath
	Anchor    anchorMatch
	Migrated  bool // schema migration happened on read
}

// scoreConfidence computes the weighted confidence for one annotation in
// one scope. Pure: same input, same score.
func scoreConfidence(in confidenceInput) *envelope.Confidence {
	age := ageFactor(in.Age)
	write := writePathFactor(in.WritePath)
	anchor := anchorFactor(in.Anchor)
	native := nativenessFactor(in.WritePath, in.Migrated)

	score := weightAge*age + weightWritePath*write + weightAnchor*anchor + weightNative*native
	score = math.Round(score*1000) / 1000

	c := &envelope.Confidence{
		Score: score,
		Tier:  envelope.ScoreToTier(score),
		Factors: []envelope.ConfidenceFactor{
			{Factor: "age", Status: ageStatus(in.Age), Impact: round3(weightAge * age)},
			{Factor: "write_path", Status: string(writePathOrLive(in.WritePath)), Impact: round3(weightWritePath * write)},
			{Factor: "anchor_match", Status: in.Anchor.String(), Impact: round3(weightAnchor * anchor)},
			{Factor: "nativeness", Status: nativenessStatus(in.WritePath, in.Migrated), Impact: round3(weightNative * native)},
		},
	}

	if age < 0.5 {
		c.Reasons = append(c.Reasons, "annotation-aged")
	}
	switch in.Anchor {
	case matchFuzzy:
		c.Reasons = append(c.Reasons, "anchor-fuzzy-match")
	case matchMissing, matchNone:
		c.Reasons = append(c.Reasons, "anchor-unresolved")
	}
	if nativenessStatus(in.WritePath, in.Migrated) != "native" {
		c.Reasons = append(c.Reasons, "not-natively-written")
	}
	return c
}

// ageFactor halves every ageHalfLife. A future-dated annotation clamps
// to 1.0 instead of scoring above a fresh one.
func ageFactor(age time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return math.Pow(0.5, age.Hours()/ageHalfLife.Hours())
}

func ageStatus(age time.Duration) string {
	days := int(age.Hours() / 24)
	switch {
	case days <= 30:
		return "fresh"
	case days <= 180:
		return "aging"
	default:
		return "old"
	}
}

func writePathFactor(wp schema.WritePath) float64 {
	switch wp {
	case schema.WritePathBackfill:
		return 0.75
	case schema.WritePathLLMBatch:
		return 0.6
	default:
		// live, amend-migrated, and synthesis paths take their penalty in
		// the nativeness factor, not here.
		return 1.0
	}
}

func writePathOrLive(wp schema.WritePath) schema.WritePath {
	if wp == "" {
		return schema.WritePathLive
	}
	return wp
}

func anchorFactor(m anchorMatch) float64 {
	switch m {
	case matchExact:
		return 1.0
	case matchUnqualified:
		return 0.85
	case matchLineOnly:
		return 0.7
	case matchFuzzy:
		return 0.6
	default:
		return 0.4
	}
}

func nativenessFactor(wp schema.WritePath, migrated bool) float64 {
	switch nativenessStatus(wp, migrated) {
	case "synthesized":
		return 0.8
	case "migrated":
		return 0.9
	default:
		return 1.0
	}
}

func nativenessStatus(wp schema.WritePath, migrated bool) string {
	switch wp {
	case schema.WritePathSquashSynthesized, schema.WritePathAmendMigrated:
		return "synthesized"
	}
	if migrated || wp == schema.WritePathSchemaMigrated {
		return "migrated"
	}
	return "native"
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
