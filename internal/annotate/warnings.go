package annotate

import (
	"context"
	"strings"
	"unicode/utf8"

	"lore/internal/envelope"
)

// Quality warning codes. These surface on the receipt only; a low-quality
// annotation is still an annotation.
const (
	WarnSummaryShort  = "summary-short"
	WarnEchoesSubject = "summary-echoes-commit"
	WarnNoFacts       = "no-markers"
)

// minSummaryRunes is the length below which a summary is flagged as thin.
const minSummaryRunes = 16

// qualityWarnings computes advisory signals for a completed write. A
// failing commit lookup only suppresses the subject-echo check.
func (p *Pipeline) qualityWarnings(ctx context.Context, commit string, in Input) []envelope.Warning {
	var warnings []envelope.Warning

	summary := strings.TrimSpace(in.Narrative.Summary)
	if utf8.RuneCountInString(summary) < minSummaryRunes {
		warnings = append(warnings, envelope.Warning{
			Code:    WarnSummaryShort,
			Message: "summary is very short; future readers get little from it",
		})
	}

	if meta, err := p.backend.CommitInfo(ctx, commit); err == nil {
		if echoesSubject(summary, meta.Subject) {
			warnings = append(warnings, envelope.Warning{
				Code:    WarnEchoesSubject,
				Message: "summary restates the commit message; record the why, not the what",
			})
		}
	}

	if len(in.Markers) == 0 && len(in.Decisions) == 0 {
		warnings = append(warnings, envelope.Warning{
			Code:    WarnNoFacts,
			Message: "no markers or decisions recorded; the annotation carries prose only",
		})
	}

	return warnings
}

// echoesSubject reports whether the summary adds nothing over the commit
// subject line: equal after normalization, or containing it with almost no
// extra text.
func echoesSubject(summary, subject string) bool {
	s := normalizeForEcho(summary)
	subj := normalizeForEcho(subject)
	if s == "" || subj == "" {
		return false
	}
	if s == subj {
		return true
	}
	return strings.Contains(s, subj) && len(s) < len(subj)+16
}

func normalizeForEcho(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
