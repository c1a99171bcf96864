package envelope

import (
	"errors"

	lerrors "lore/internal/errors"
)

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{
		resp: &Response{
			SchemaVersion: CurrentSchemaVersion,
		},
	}
}

// Data sets the command-specific payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

func (b *Builder) meta() *Meta {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}
	return b.resp.Meta
}

// WithConfidence attaches a recomputed confidence block.
func (b *Builder) WithConfidence(c *Confidence) *Builder {
	if c == nil {
		return b
	}
	b.meta().Confidence = c
	return b
}

// WithProvenance records the notes ref and repository state that served
// the response, plus every schema version encountered while parsing.
func (b *Builder) WithProvenance(ref, head string, schemas []string) *Builder {
	b.meta().Provenance = &Provenance{
		Ref:     ref,
		Head:    head,
		Schemas: schemas,
	}
	return b
}

// WithFreshness records how far the file has moved past the annotation.
// A stale annotation downgrades a high confidence tier to medium.
func (b *Builder) WithFreshness(commitsSince, threshold int) *Builder {
	stale := threshold > 0 && commitsSince > threshold
	b.meta().Freshness = &Freshness{
		CommitsSince: commitsSince,
		Stale:        stale,
		Threshold:    threshold,
	}

	if stale && b.resp.Meta.Confidence != nil && b.resp.Meta.Confidence.Tier == TierHigh {
		b.resp.Meta.Confidence.Tier = TierMedium
		b.resp.Meta.Confidence.Reasons = append(
			b.resp.Meta.Confidence.Reasons,
			"annotation-stale",
		)
	}
	return b
}

// WithTruncation adds truncation metadata.
func (b *Builder) WithTruncation(truncated bool, shown, total int, reason string) *Builder {
	if !truncated {
		return b
	}
	b.meta().Truncation = &Truncation{
		IsTruncated: true,
		Shown:       shown,
		Total:       total,
		Reason:      reason,
	}
	return b
}

// SuggestCalls converts drilldowns to structured suggested calls.
func (b *Builder) SuggestCalls(drilldowns []lerrors.Drilldown) *Builder {
	for _, d := range drilldowns {
		if d.Query == "" {
			continue
		}
		b.resp.SuggestedNextCalls = append(b.resp.SuggestedNextCalls, SuggestedCall{
			Command: d.Query,
			Reason:  d.Label,
		})
	}
	return b
}

// SuggestCall adds a single follow-up command.
func (b *Builder) SuggestCall(command, reason string) *Builder {
	b.resp.SuggestedNextCalls = append(b.resp.SuggestedNextCalls, SuggestedCall{
		Command: command,
		Reason:  reason,
	})
	return b
}

// Warning adds a warning message.
func (b *Builder) Warning(msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Message: msg})
	return b
}

// WarningWithCode adds a warning with a code.
func (b *Builder) WarningWithCode(code, msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Code: code, Message: msg})
	return b
}

// Error sets the error field. Non-lore errors are wrapped so the envelope
// always carries a stable error code.
func (b *Builder) Error(err error) *Builder {
	if err == nil {
		return b
	}
	var le *lerrors.LoreError
	if !errors.As(err, &le) {
		le = lerrors.New(lerrors.InternalError, err.Error(), nil)
	}
	b.resp.Error = le
	return b
}

// Build returns the completed response envelope.
func (b *Builder) Build() *Response {
	return b.resp
}

// Operational creates a simple envelope for operational commands. These
// always have high confidence and no truncation or freshness concerns.
func Operational(data interface{}) *Response {
	return &Response{
		SchemaVersion: CurrentSchemaVersion,
		Data:          data,
		Meta: &Meta{
			Confidence: &Confidence{
				Score: 1.0,
				Tier:  TierHigh,
			},
		},
	}
}

// Failure creates an error-only envelope carrying the error's own
// suggested follow-ups.
func Failure(err error) *Response {
	b := New().Error(err)
	if b.resp.Error != nil {
		b.SuggestCalls(b.resp.Error.Drilldowns)
	}
	return b.Build()
}
