package testutil

import (
	"encoding/json"
	"testing"
)

// volatileFields are scrubbed before golden comparison so reruns and
// fixture edits do not churn snapshots.
var volatileFields = map[string]string{
	"createdAt":   "<time>",
	"correctedAt": "<time>",
	"time":        "<time>",
	"head":        "<commit>",
	"durationMs":  "<duration>",
}

// MarshalNormalized renders data as indented JSON with volatile fields
// replaced by stable placeholders.
func MarshalNormalized(t *testing.T, data any) []byte {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshaling for normalization: %v", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshaling for normalization: %v", err)
	}

	out, err := json.MarshalIndent(scrub(generic), "", "  ")
	if err != nil {
		t.Fatalf("marshaling normalized data: %v", err)
	}
	return append(out, '\n')
}

func scrub(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if placeholder, ok := volatileFields[k]; ok {
				if _, isString := inner.(string); isString {
					val[k] = placeholder
					continue
				}
			}
			val[k] = scrub(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = scrub(inner)
		}
		return val
	default:
		return v
	}
}
