package envelope

// ScoreToTier converts a confidence score (0.0-1.0) to a tier.
//
// Tier mapping:
//   - 0.85+ -> high (fresh native annotation, exact anchor)
//   - 0.60-0.84 -> medium (aged, migrated, or loosely anchored)
//   - 0.35-0.59 -> low (stale or fuzzily matched)
//   - <0.35 -> speculative (synthesized, anchor lost)
func ScoreToTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.85:
		return TierHigh
	case score >= 0.60:
		return TierMedium
	case score >= 0.35:
		return TierLow
	default:
		return TierSpeculative
	}
}
