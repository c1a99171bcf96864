package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lore/internal/annotate"
	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

var (
	annotateFile       string
	annotateSummary    string
	annotateMotivation string
	annotateFollowUp   string
	annotateMarkers    []string
	annotateDecisions  []string
	annotateTask       string
	annotateWritePath  string
	annotateForce      bool
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <commit>",
	Short: "Record why a commit is the way it is",
	Long: `Attach a why-annotation to a commit. The record lives in git notes
(refs/notes/lore), travels with clones, and never touches the working tree.

Input comes from flags or, for the full structured form, from a JSON
document via --file ('-' reads stdin):

  lore annotate HEAD --summary "Serialize flushes through one goroutine" \
    --marker "contract:internal/wal/writer.go#Flush:callers may not hold the segment lock" \
    --decision "single flush goroutine :: lock ordering was unprovable :: permanent"

Marker syntax:    kind:file[#anchor][@start-end]:description
                  kinds: contract, hazard, dependency, unstable, deprecated.
                  Dependency markers point at the code they assume:
                    dependency:src.go#reader->wal/writer.go#Flush:description
Decision syntax:  what :: why [:: stability [:: revisit]]
                  stability: permanent, provisional, experimental

An existing annotation is never silently replaced: the write fails with
WRITE_CONFLICT unless --force. To fix a detail of an existing record,
'lore correct' appends a correction instead of rewriting history.`,
	Args: cobra.ExactArgs(1),
	Run:  runAnnotate,
}

func init() {
	annotateCmd.Flags().StringVar(&annotateFile, "file", "", "Read the annotation input as JSON from a file ('-' for stdin)")
	annotateCmd.Flags().StringVar(&annotateSummary, "summary", "", "One-line why (required unless --file)")
	annotateCmd.Flags().StringVar(&annotateMotivation, "motivation", "", "Longer motivation")
	annotateCmd.Flags().StringVar(&annotateFollowUp, "follow-up", "", "Known followup work")
	annotateCmd.Flags().StringArrayVar(&annotateMarkers, "marker", nil, "Location-grounded fact (repeatable)")
	annotateCmd.Flags().StringArrayVar(&annotateDecisions, "decision", nil, "Design decision (repeatable)")
	annotateCmd.Flags().StringVar(&annotateTask, "task", "", "External task id for the effort link")
	annotateCmd.Flags().StringVar(&annotateWritePath, "write-path", "live", "How this record was produced (live, llm-batch, backfill)")
	annotateCmd.Flags().BoolVar(&annotateForce, "force", false, "Replace an existing annotation")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	commit, err := rt.backend.ResolveRef(ctx, args[0])
	if err != nil {
		fail(rt, err)
	}

	in, err := buildInput()
	if err != nil {
		fail(rt, err)
	}
	wp, err := parseWritePath(annotateWritePath)
	if err != nil {
		fail(rt, err)
	}

	pipeline, err := rt.newPipeline(ctx)
	if err != nil {
		fail(rt, err)
	}
	receipt, err := pipeline.Write(ctx, commit, in, annotate.Options{
		WritePath: wp,
		Force:     annotateForce,
	})
	if err != nil {
		fail(rt, err)
	}
	emit(rt, receiptEnvelope(receipt))
}

// buildInput assembles the write input from --file or from the flag set.
func buildInput() (annotate.Input, error) {
	if annotateFile != "" {
		data, err := readInputFile(annotateFile)
		if err != nil {
			return annotate.Input{}, err
		}
		return annotate.DecodeInput(data)
	}

	in := annotate.Input{
		Narrative: schema.Narrative{
			Summary:    annotateSummary,
			Motivation: annotateMotivation,
			FollowUp:   annotateFollowUp,
		},
	}
	for _, raw := range annotateMarkers {
		m, err := parseMarkerFlag(raw)
		if err != nil {
			return annotate.Input{}, err
		}
		in.Markers = append(in.Markers, m)
	}
	for _, raw := range annotateDecisions {
		d, err := parseDecisionFlag(raw)
		if err != nil {
			return annotate.Input{}, err
		}
		in.Decisions = append(in.Decisions, d)
	}
	if annotateTask != "" {
		in.Effort = &schema.Effort{TaskID: annotateTask}
	}
	return in, nil
}

func readInputFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, lerrors.New(lerrors.ValidationFailed, "reading annotation input from stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("reading annotation input from %s", path), err)
	}
	return data, nil
}

// parseMarkerFlag parses "kind:file[#anchor][@start-end][->target]:description".
// The description is everything after the second colon, so it may itself
// contain colons.
func parseMarkerFlag(raw string) (schema.Marker, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return schema.Marker{}, markerFlagError(raw, "expected kind:location:description")
	}
	kind, loc, desc := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if desc == "" {
		return schema.Marker{}, markerFlagError(raw, "description is empty")
	}

	m := schema.Marker{Kind: schema.MarkerKind(kind), Description: desc}

	if src, tgt, found := cutArrow(loc); found {
		file, anchor := splitAnchor(tgt)
		m.Target = &schema.TargetRef{File: file, Anchor: anchor}
		loc = src
		// The description of a dependency is the assumption being made.
		m.Assumption = desc
	}

	if at := strings.IndexByte(loc, '@'); at >= 0 {
		lines, err := parseLineRange(loc[at+1:], "-")
		if err != nil {
			return schema.Marker{}, markerFlagError(raw, err.Error())
		}
		m.Lines = lines
		loc = loc[:at]
	}
	m.File, m.Anchor = splitAnchor(loc)
	if m.File == "" {
		return schema.Marker{}, markerFlagError(raw, "location names no file")
	}
	return m, nil
}

// cutArrow splits "source->target", returning (source, target, true).
func cutArrow(loc string) (source, target string, found bool) {
	i := strings.Index(loc, "->")
	if i < 0 {
		return "", "", false
	}
	return loc[:i], loc[i+2:], true
}

func splitAnchor(loc string) (file, anchor string) {
	if i := strings.IndexByte(loc, '#'); i >= 0 {
		return loc[:i], loc[i+1:]
	}
	return loc, ""
}

func markerFlagError(raw, reason string) error {
	return lerrors.New(lerrors.ValidationFailed,
		fmt.Sprintf("marker %q: %s", raw, reason), nil)
}

// parseDecisionFlag parses "what :: why [:: stability [:: revisit]]".
func parseDecisionFlag(raw string) (schema.Decision, error) {
	parts := strings.Split(raw, " :: ")
	if len(parts) < 2 || len(parts) > 4 {
		return schema.Decision{}, lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("decision %q: expected 'what :: why [:: stability [:: revisit]]'", raw), nil)
	}
	d := schema.Decision{
		What: strings.TrimSpace(parts[0]),
		Why:  strings.TrimSpace(parts[1]),
	}
	if len(parts) > 2 {
		d.Stability = schema.Stability(strings.TrimSpace(parts[2]))
	}
	if len(parts) > 3 {
		d.Revisit = strings.TrimSpace(parts[3])
	}
	return d, nil
}

// parseLineRange parses "start<sep>end" into a LineRange.
func parseLineRange(s, sep string) (*schema.LineRange, error) {
	first, second, found := strings.Cut(s, sep)
	if !found {
		return nil, fmt.Errorf("line range %q: expected start%send", s, sep)
	}
	start, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return nil, fmt.Errorf("line range %q: start is not a number", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(second))
	if err != nil {
		return nil, fmt.Errorf("line range %q: end is not a number", s)
	}
	r := schema.LineRange{Start: start, End: end}
	if !r.Valid() {
		return nil, fmt.Errorf("line range %d%s%d is not ordered", start, sep, end)
	}
	return &r, nil
}

func parseWritePath(s string) (schema.WritePath, error) {
	switch schema.WritePath(s) {
	case schema.WritePathLive, schema.WritePathLLMBatch, schema.WritePathBackfill:
		return schema.WritePath(s), nil
	default:
		return "", lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("write path %q: must be live, llm-batch, or backfill", s), nil)
	}
}

// receiptEnvelope wraps a write receipt; its quality warnings ride in the
// envelope warning list where agents look for them.
func receiptEnvelope(r *annotate.Receipt) *envelope.Response {
	resp := envelope.Operational(r)
	resp.Warnings = append(resp.Warnings, r.Warnings...)
	return resp
}
