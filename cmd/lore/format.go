package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"lore/internal/annotate"
	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/knowledge"
	"lore/internal/output"
	"lore/internal/query"
	"lore/internal/rewrite"
)

// OutputFormat selects how envelopes are rendered.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse renders an envelope. JSON output is deterministic (sorted
// keys, stable floats) so agents and golden tests can diff it byte for byte.
func FormatResponse(resp *envelope.Response, format OutputFormat, compact bool) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp, compact)
	case FormatHuman:
		return formatHuman(resp), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp *envelope.Response, compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = output.CompactEncode(resp)
	} else {
		data, err = output.DeterministicEncodeIndented(resp, "  ")
	}
	if err != nil {
		return "", fmt.Errorf("encoding response: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman renders the envelope body by result type, then the shared
// meta footer (confidence, freshness, warnings, follow-ups).
func formatHuman(resp *envelope.Response) string {
	var b strings.Builder

	if resp.Error != nil {
		fmt.Fprintf(&b, "✗ %s: %s\n", resp.Error.Code, resp.Error.Message)
		writeFixes(&b, resp.Error.SuggestedFixes)
		writeFooter(&b, resp)
		return strings.TrimRight(b.String(), "\n")
	}

	switch data := resp.Data.(type) {
	case *query.ExplainResult:
		formatExplainHuman(&b, data)
	case *query.DependentsResult:
		formatDependentsHuman(&b, data)
	case *query.TimelineResult:
		formatTimelineHuman(&b, data)
	case *query.SummaryResult:
		formatSummaryHuman(&b, data)
	case *query.LookupResult:
		formatLookupHuman(&b, data)
	case *query.CorpusStats:
		formatStatsHuman(&b, data)
	case *annotate.Receipt:
		formatReceiptHuman(&b, data)
	case *rewrite.Result:
		formatRewriteHuman(&b, data)
	case *KnowledgeListResult:
		formatKnowledgeHuman(&b, data)
	case *SyncResult:
		formatSyncHuman(&b, data)
	case *StatusResult:
		formatStatusHuman(&b, data)
	case *DoctorResult:
		formatDoctorHuman(&b, data)
	default:
		// Unknown payloads fall back to JSON rather than hiding data.
		b.WriteString("Human format not available; JSON follows.\n")
		if out, err := formatJSON(resp, false); err == nil {
			b.WriteString(out)
			b.WriteString("\n")
		}
		return strings.TrimRight(b.String(), "\n")
	}

	writeFooter(&b, resp)
	return strings.TrimRight(b.String(), "\n")
}

func formatExplainHuman(b *strings.Builder, res *query.ExplainResult) {
	fmt.Fprintf(b, "Why: %s\n", res.Scope.Label())
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if len(res.Annotations) == 0 {
		b.WriteString("\nNo annotations cover this scope.\n")
	}
	for _, ann := range res.Annotations {
		fmt.Fprintf(b, "\n%s  %s", shortCommit(ann.Commit), ann.Summary)
		if ann.Confidence != nil {
			fmt.Fprintf(b, "  [%s %.2f]", ann.Confidence.Tier, ann.Confidence.Score)
		}
		b.WriteString("\n")
		fmt.Fprintf(b, "  written %s", dateOf(ann.CreatedAt))
		if ann.Author != "" {
			fmt.Fprintf(b, " by %s", ann.Author)
		}
		if ann.WritePath != "" && ann.WritePath != "live" {
			fmt.Fprintf(b, " (%s)", ann.WritePath)
		}
		b.WriteString("\n")
		if ann.Motivation != "" {
			fmt.Fprintf(b, "  why: %s\n", ann.Motivation)
		}
		for _, alt := range ann.Alternatives {
			fmt.Fprintf(b, "  rejected: %s — %s\n", alt.Approach, alt.Reason)
		}
		for _, m := range ann.Markers {
			fmt.Fprintf(b, "  [%s] %s", m.Kind, m.Description)
			if m.Match != "" && m.Match != "exact" {
				fmt.Fprintf(b, " (match: %s)", m.Match)
			}
			b.WriteString("\n")
		}
		for _, d := range ann.Decisions {
			fmt.Fprintf(b, "  decision: %s — %s [%s]\n", d.What, d.Why, d.Stability)
		}
		if ann.FollowUp != "" {
			fmt.Fprintf(b, "  follow-up: %s\n", ann.FollowUp)
		}
		if ann.Corrections > 0 {
			fmt.Fprintf(b, "  (%d correction(s) folded in)\n", ann.Corrections)
		}
		if ann.Freshness != nil && ann.Freshness.Stale {
			fmt.Fprintf(b, "  ⚠ stale: %d commits touched the file since\n", ann.Freshness.CommitsSince)
		}
	}

	if len(res.Dependents) > 0 {
		fmt.Fprintf(b, "\nDepended on by %d location(s):\n", len(res.Dependents))
		for _, d := range res.Dependents {
			fmt.Fprintf(b, "  %s", locationOf(d.File, d.Anchor))
			if d.Assumption != "" {
				fmt.Fprintf(b, " — assumes: %s", d.Assumption)
			}
			b.WriteString("\n")
		}
	}

	writeKnowledgeEntries(b, res.Knowledge)
}

func formatDependentsHuman(b *strings.Builder, res *query.DependentsResult) {
	fmt.Fprintf(b, "Dependents of %s\n", locationOf(res.File, res.Anchor))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(res.Dependents) == 0 {
		b.WriteString("Nothing records a dependency on this location.\n")
		return
	}
	fmt.Fprintf(b, "%d location(s) assume something about this code:\n\n", res.Total)
	for i, d := range res.Dependents {
		fmt.Fprintf(b, "%d. %s  (%s)\n", i+1, locationOf(d.File, d.Anchor), shortCommit(d.Commit))
		if d.Assumption != "" {
			fmt.Fprintf(b, "   assumes: %s\n", d.Assumption)
		}
		if d.Summary != "" {
			fmt.Fprintf(b, "   from: %s\n", d.Summary)
		}
	}
}

func formatTimelineHuman(b *strings.Builder, res *query.TimelineResult) {
	fmt.Fprintf(b, "Timeline: %s\n", res.Scope.Label())
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(res.Entries) == 0 {
		b.WriteString("No annotated history for this scope.\n")
		return
	}
	for _, e := range res.Entries {
		marker := " "
		if e.Synthesized {
			marker = "~"
		}
		fmt.Fprintf(b, "%s %s  %s  %s", marker, dateOf(e.Time), shortCommit(e.Commit), e.Summary)
		if e.Synthesized {
			fmt.Fprintf(b, "  (synthesized)")
		}
		b.WriteString("\n")
	}
	if res.Total > len(res.Entries) {
		fmt.Fprintf(b, "\n(%d earlier entries not shown)\n", res.Total-len(res.Entries))
	}
}

func formatSummaryHuman(b *strings.Builder, res *query.SummaryResult) {
	fmt.Fprintf(b, "Summary: %s\n", res.File)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(res.Anchors) == 0 {
		b.WriteString("No annotations for this file.\n")
		return
	}
	tw := tabwriter.NewWriter(b, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANCHOR\tSUMMARY\tFACTS\tSTALE")
	for _, row := range res.Anchors {
		anchor := row.Anchor
		if anchor == "" {
			anchor = "(file)"
		}
		stale := ""
		if row.Stale {
			stale = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", anchor, row.Summary, factCount(row), stale)
	}
	tw.Flush()
}

func factCount(row output.AnchorSummary) string {
	parts := []string{}
	if row.Markers > 0 {
		parts = append(parts, fmt.Sprintf("%dm", row.Markers))
	}
	if row.Decisions > 0 {
		parts = append(parts, fmt.Sprintf("%dd", row.Decisions))
	}
	return strings.Join(parts, "+")
}

func formatLookupHuman(b *strings.Builder, res *query.LookupResult) {
	fmt.Fprintf(b, "Before you touch %s\n", res.Scope.Label())
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if len(res.Contracts) > 0 {
		b.WriteString("\nContracts in force:\n")
		for _, c := range res.Contracts {
			fmt.Fprintf(b, "  • %s  (%s)\n", c.Description, locationOf(c.File, c.Anchor))
		}
	}
	if len(res.Hazards) > 0 {
		b.WriteString("\nHazards:\n")
		for _, h := range res.Hazards {
			fmt.Fprintf(b, "  ⚠ %s  (%s)\n", h.Description, locationOf(h.File, h.Anchor))
		}
	}
	if len(res.Decisions) > 0 {
		b.WriteString("\nDecisions behind the current shape:\n")
		for _, d := range res.Decisions {
			fmt.Fprintf(b, "  • %s — %s [%s, %s]\n", d.What, d.Why, d.Stability, shortCommit(d.Commit))
		}
	}
	if len(res.Recent) > 0 {
		b.WriteString("\nRecent annotations:\n")
		for _, r := range res.Recent {
			fmt.Fprintf(b, "  %s  %s  %s\n", dateOf(r.Time), shortCommit(r.Commit), r.Summary)
		}
	}
	writeKnowledgeEntries(b, res.Knowledge)
	if res.Freshness != nil && res.Freshness.Stale {
		fmt.Fprintf(b, "\n⚠ The newest annotation is stale: %d commits touched this code since.\n",
			res.Freshness.CommitsSince)
	}
	if len(res.Contracts) == 0 && len(res.Hazards) == 0 && len(res.Decisions) == 0 && len(res.Recent) == 0 {
		b.WriteString("\nNothing recorded for this scope.\n")
	}
}

func formatStatsHuman(b *strings.Builder, res *query.CorpusStats) {
	b.WriteString("Annotation corpus\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(b, "Annotated commits: %d\n", res.Total)
	if len(res.ByVersion) > 0 {
		b.WriteString("By stored schema version:\n")
		for _, tag := range sortedKeys(res.ByVersion) {
			fmt.Fprintf(b, "  %-10s %d\n", tag, res.ByVersion[tag])
		}
	}
	if res.Pending > 0 {
		fmt.Fprintf(b, "Migrating on read: %d (stored bytes stay untouched)\n", res.Pending)
	}
	if res.Corrupt > 0 {
		fmt.Fprintf(b, "✗ Unreadable: %d\n", res.Corrupt)
	}
}

func formatReceiptHuman(b *strings.Builder, r *annotate.Receipt) {
	action := "Annotated"
	if r.Forced {
		action = "Replaced annotation on"
	}
	fmt.Fprintf(b, "✓ %s %s (%s, %d bytes)\n", action, shortCommit(r.Commit), r.Schema, r.Bytes)
	if r.Author != "" {
		fmt.Fprintf(b, "  author: %s\n", r.Author)
	}
	if r.WritePath != "" && r.WritePath != "live" {
		fmt.Fprintf(b, "  write path: %s\n", r.WritePath)
	}
}

func formatRewriteHuman(b *strings.Builder, res *rewrite.Result) {
	if res.Receipt == nil {
		fmt.Fprintf(b, "Nothing to carry: no source annotation survives the %s.\n", res.Kind)
		return
	}
	fmt.Fprintf(b, "✓ Synthesized %s annotation on %s\n", res.Kind, shortCommit(res.Target))
	fmt.Fprintf(b, "  from %d source(s), %d annotated\n", len(res.Sources), res.SourcesAnnotated)
	if len(res.ConflictFiles) > 0 {
		fmt.Fprintf(b, "  conflict files: %s\n", strings.Join(res.ConflictFiles, ", "))
	}
}

func formatKnowledgeHuman(b *strings.Builder, res *KnowledgeListResult) {
	fmt.Fprintf(b, "Knowledge (%d entries)\n", len(res.Entries))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	if len(res.Entries) == 0 {
		b.WriteString("No entries. Add one with 'lore knowledge add'.\n")
		return
	}
	for _, e := range res.Entries {
		writeKnowledgeEntry(b, e, "")
	}
}

func formatSyncHuman(b *strings.Builder, res *SyncResult) {
	if res.Fetched {
		fmt.Fprintf(b, "✓ Fetched %s from %s\n", res.Ref, res.Remote)
	}
	if res.Pushed {
		fmt.Fprintf(b, "✓ Pushed %s to %s\n", res.Ref, res.Remote)
	}
	if !res.Fetched && !res.Pushed {
		b.WriteString("Nothing synced.\n")
	}
}

func formatStatusHuman(b *strings.Builder, res *StatusResult) {
	fmt.Fprintf(b, "lore status — v%s\n", res.Version)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(b, "Repository:  %s\n", res.RepoRoot)
	fmt.Fprintf(b, "Notes ref:   %s", res.Ref)
	if res.RefTip == "" {
		b.WriteString(" (absent — nothing annotated yet)")
	}
	b.WriteString("\n")
	if res.Head != "" {
		fmt.Fprintf(b, "HEAD:        %s\n", shortCommit(res.Head))
	}
	if res.Remote != "" {
		fmt.Fprintf(b, "Remote:      %s\n", res.Remote)
	}
	fmt.Fprintf(b, "Knowledge:   %d entries\n", res.KnowledgeEntries)
	if res.Corpus != nil {
		b.WriteString("\n")
		formatStatsHuman(b, res.Corpus)
	}
}

func formatDoctorHuman(b *strings.Builder, res *DoctorResult) {
	b.WriteString("lore doctor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if res.Healthy {
		b.WriteString("✓ All checks passed\n\n")
	} else {
		b.WriteString("✗ Issues found\n\n")
	}
	for _, check := range res.Checks {
		var icon string
		switch check.Status {
		case "pass":
			icon = "✓"
		case "warn":
			icon = "⚠"
		default:
			icon = "✗"
		}
		fmt.Fprintf(b, "%s %s: %s\n", icon, check.Name, check.Message)
		for _, fix := range check.SuggestedFixes {
			fmt.Fprintf(b, "    → %s\n", fix.Description)
			if fix.Command != "" {
				fmt.Fprintf(b, "      $ %s\n", fix.Command)
			}
		}
	}
}

// writeFooter appends the envelope meta shared by every query result.
func writeFooter(b *strings.Builder, resp *envelope.Response) {
	if m := resp.Meta; m != nil {
		var parts []string
		if m.Confidence != nil {
			parts = append(parts, fmt.Sprintf("confidence %s (%.2f)", m.Confidence.Tier, m.Confidence.Score))
		}
		if m.Freshness != nil && m.Freshness.Stale {
			parts = append(parts, fmt.Sprintf("stale (%d commits since)", m.Freshness.CommitsSince))
		}
		if m.Truncation != nil && m.Truncation.IsTruncated {
			parts = append(parts, fmt.Sprintf("showing %d of %d", m.Truncation.Shown, m.Truncation.Total))
		}
		if len(parts) > 0 {
			fmt.Fprintf(b, "\n— %s\n", strings.Join(parts, "; "))
		}
	}

	if len(resp.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range resp.Warnings {
			fmt.Fprintf(b, "  ! %s\n", w.Message)
		}
	}

	if len(resp.SuggestedNextCalls) > 0 {
		b.WriteString("\nNext:\n")
		for _, s := range resp.SuggestedNextCalls {
			fmt.Fprintf(b, "  $ %s", s.Command)
			if s.Reason != "" {
				fmt.Fprintf(b, "   # %s", s.Reason)
			}
			b.WriteString("\n")
		}
	}
}

func writeKnowledgeEntries(b *strings.Builder, entries []knowledge.Entry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("\nRepo-wide knowledge:\n")
	for _, e := range entries {
		writeKnowledgeEntry(b, e, "  ")
	}
}

func writeKnowledgeEntry(b *strings.Builder, e knowledge.Entry, indent string) {
	switch e.Kind {
	case knowledge.KindConvention:
		fmt.Fprintf(b, "%s[%s] convention: %s", indent, e.ID, e.Rule)
		if len(e.Scope) > 0 {
			fmt.Fprintf(b, " (scope: %s)", strings.Join(e.Scope, ", "))
		}
	case knowledge.KindBoundary:
		fmt.Fprintf(b, "%s[%s] boundary: %s owns %s", indent, e.ID, e.Module, strings.Join(e.Owns, ", "))
		if e.Boundary != "" {
			fmt.Fprintf(b, " — %s", e.Boundary)
		}
	case knowledge.KindAntiPattern:
		fmt.Fprintf(b, "%s[%s] anti-pattern: %s → %s", indent, e.ID, e.Pattern, e.Instead)
	default:
		fmt.Fprintf(b, "%s[%s] %s", indent, e.ID, e.Kind)
	}
	b.WriteString("\n")
}

// printSuggestedFixes surfaces a LoreError's fixes on the human error path.
func printSuggestedFixes(w io.Writer, err error) {
	var le *lerrors.LoreError
	if !errors.As(err, &le) {
		return
	}
	for _, fix := range le.SuggestedFixes {
		fmt.Fprintf(w, "  → %s\n", fix.Description)
		if fix.Command != "" {
			fmt.Fprintf(w, "    $ %s\n", fix.Command)
		}
	}
}

func writeFixes(b *strings.Builder, fixes []lerrors.FixAction) {
	for _, fix := range fixes {
		fmt.Fprintf(b, "  → %s\n", fix.Description)
		if fix.Command != "" {
			fmt.Fprintf(b, "    $ %s\n", fix.Command)
		}
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

// dateOf trims an RFC3339 timestamp to its date.
func dateOf(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}

func locationOf(file, anchor string) string {
	if anchor == "" {
		return file
	}
	return file + "#" + anchor
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
