// Package output provides deterministic sorting and encoding for lore
// responses.
//
// Identical queries against an unchanged repository must produce
// byte-identical JSON. This enables:
//   - Cache keys derived from response content
//   - Golden-file testing without false positives
//   - Reproducible results for debugging
//
// # Ordering Contract
//
// All result arrays are deterministically sorted:
//
//   - dependents: file ASC, line ASC, commit ASC
//   - timeline entries: time ASC, commit ASC
//   - anchor summaries: file ASC, anchor ASC
//   - markers: kind priority, file ASC, anchor ASC
//
// # JSON Encoding Rules
//
// The DeterministicEncode function produces byte-identical outputs by:
//
//  1. Stable key ordering: object keys are sorted alphabetically
//  2. Float formatting: rounded to max 6 decimal places, no trailing zeros
//  3. Null handling: nil/undefined fields are omitted entirely
//
// Confidence scores are recomputed on every read and depend on the current
// time, so byte-level comparisons across reads must scrub them first.
package output
