// Package envelope provides a standardized response wrapper for all lore
// command output. Every response is wrapped in a consistent envelope that
// includes metadata about confidence, provenance, freshness, truncation,
// warnings, and suggested follow-up commands.
package envelope

import (
	lerrors "lore/internal/errors"
)

// ConfidenceTier represents the quality tier of results.
type ConfidenceTier string

const (
	// TierHigh indicates fresh, natively written annotations with exact anchors.
	TierHigh ConfidenceTier = "high"
	// TierMedium indicates aged, migrated, or loosely anchored annotations.
	TierMedium ConfidenceTier = "medium"
	// TierLow indicates stale or fuzzily matched annotations.
	TierLow ConfidenceTier = "low"
	// TierSpeculative indicates synthesized or barely anchored annotations.
	TierSpeculative ConfidenceTier = "speculative"
)

// ConfidenceFactor explains one component of the confidence score.
type ConfidenceFactor struct {
	Factor string  `json:"factor"` // e.g., "age", "anchor_match"
	Status string  `json:"status"` // e.g., "exact", "fuzzy", "migrated"
	Impact float64 `json:"impact"` // weighted contribution to score
}

// Confidence describes result quality. Scores are recomputed on every
// read and never stored.
type Confidence struct {
	Score   float64            `json:"score"`             // 0.0 - 1.0
	Tier    ConfidenceTier     `json:"tier"`              // high, medium, low, speculative
	Reasons []string           `json:"reasons,omitempty"` // why this tier
	Factors []ConfidenceFactor `json:"factors,omitempty"` // breakdown of score
}

// Provenance describes where the response data came from.
type Provenance struct {
	Ref     string   `json:"ref"`               // notes ref that served the response
	Head    string   `json:"head,omitempty"`    // HEAD commit at read time
	Schemas []string `json:"schemas,omitempty"` // schema versions encountered, migrated ones included
}

// Freshness describes how far the repository has moved past an annotation.
type Freshness struct {
	CommitsSince int  `json:"commitsSince"`        // commits touching the file after the annotated one
	Stale        bool `json:"stale"`               // CommitsSince exceeded the threshold
	Threshold    int  `json:"threshold,omitempty"` // configured staleness threshold
}

// Truncation describes result trimming.
type Truncation struct {
	IsTruncated bool   `json:"isTruncated"`
	Shown       int    `json:"shown,omitempty"`  // items returned
	Total       int    `json:"total,omitempty"`  // total available
	Reason      string `json:"reason,omitempty"` // "max-dependents", "max-timeline", etc.
}

// Meta holds response metadata.
type Meta struct {
	Confidence *Confidence `json:"confidence,omitempty"`
	Provenance *Provenance `json:"provenance,omitempty"`
	Freshness  *Freshness  `json:"freshness,omitempty"`
	Truncation *Truncation `json:"truncation,omitempty"`
}

// SuggestedCall represents a recommended follow-up command.
type SuggestedCall struct {
	Command string `json:"command"`          // complete lore invocation
	Reason  string `json:"reason,omitempty"` // why this is suggested
}

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty"` // machine-readable code
	Message string `json:"message"`        // human-readable message
}

// Response is the standard envelope for all command responses.
type Response struct {
	SchemaVersion      string             `json:"schemaVersion"`
	Data               interface{}        `json:"data"`
	Meta               *Meta              `json:"meta,omitempty"`
	Warnings           []Warning          `json:"warnings,omitempty"`
	Error              *lerrors.LoreError `json:"error,omitempty"`
	SuggestedNextCalls []SuggestedCall    `json:"suggestedNextCalls,omitempty"`
}

// CurrentSchemaVersion is the current envelope schema version.
const CurrentSchemaVersion = "1.0"
