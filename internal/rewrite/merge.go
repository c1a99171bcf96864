package rewrite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lore/internal/annotate"
	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

// merge annotates only the hand-resolved parts of a merge commit: lines in
// the merge result that appear in neither parent. Content inherited from a
// parent already carries its own history and is not re-annotated. A clean
// merge produces no annotation.
func (s *Synthesizer) merge(ctx context.Context, target string) (*Result, error) {
	parents, err := s.backend.Parents(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(parents) < 2 {
		return nil, lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("%s has %d parent(s); merge synthesis needs a merge commit", shortID(target), len(parents)), nil)
	}

	res := &Result{Kind: KindMerge, Target: target, Sources: parents}

	candidates, err := s.conflictCandidates(ctx, parents, target)
	if err != nil {
		return nil, err
	}

	var markers []schema.Marker
	for _, file := range candidates {
		hunks := s.resolutionHunks(ctx, parents, target, file)
		if len(hunks) == 0 {
			continue
		}
		res.ConflictFiles = append(res.ConflictFiles, file)
		for i := range hunks {
			markers = append(markers, schema.Marker{
				Kind:        schema.MarkerHazard,
				File:        file,
				Lines:       &hunks[i],
				Description: "hand-resolved merge conflict; these lines match neither parent",
			})
		}
	}
	if len(markers) == 0 {
		s.logger.Info("merge had no resolution hunks", "target", shortID(target))
		return res, nil
	}

	summary := fmt.Sprintf("Merge resolution across %d file(s)", len(res.ConflictFiles))
	if meta, err := s.backend.CommitInfo(ctx, target); err == nil && strings.TrimSpace(meta.Subject) != "" {
		summary = meta.Subject
	}

	in := annotate.Input{
		Narrative: schema.Narrative{Summary: summary},
		Markers:   markers,
	}
	receipt, err := s.pipeline.Write(ctx, target, in, annotate.Options{
		WritePath:     schema.WritePathSquashSynthesized,
		Force:         true,
		SourceCommits: parents,
		SynthesisNotes: fmt.Sprintf("merge resolution: %d hunk(s) across %d file(s)",
			len(markers), len(res.ConflictFiles)),
	})
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt
	return res, nil
}

// conflictCandidates lists files that differ from every parent. A file equal
// to one parent was taken wholesale and cannot contain resolution work.
func (s *Synthesizer) conflictCandidates(ctx context.Context, parents []string, target string) ([]string, error) {
	counts := map[string]int{}
	for _, parent := range parents {
		files, err := s.backend.ChangedFiles(ctx, parent, target)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				counts[f]++
			}
		}
	}

	var candidates []string
	for f, n := range counts {
		if n == len(parents) {
			candidates = append(candidates, f)
		}
	}
	sort.Strings(candidates)
	return candidates, nil
}

// resolutionHunks finds the line ranges of file at target whose content
// appears in no parent. Comparison ignores indentation; blank lines bridge
// a hunk but never open one. Unreadable content yields no hunks.
func (s *Synthesizer) resolutionHunks(ctx context.Context, parents []string, target, file string) []schema.LineRange {
	result, err := s.backend.ReadFileAt(ctx, target, file)
	if err != nil {
		s.logger.Debug("merge result unreadable", "file", file, "error", err)
		return nil
	}

	inherited := map[string]bool{}
	for _, parent := range parents {
		content, err := s.backend.ReadFileAt(ctx, parent, file)
		if err != nil {
			// The file may not exist in this parent.
			continue
		}
		for _, line := range splitLines(content) {
			if key := strings.TrimSpace(line); key != "" {
				inherited[key] = true
			}
		}
	}

	var hunks []schema.LineRange
	open := false
	var cur schema.LineRange
	for i, line := range splitLines(result) {
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}
		if inherited[key] {
			if open {
				hunks = append(hunks, cur)
				open = false
			}
			continue
		}
		if !open {
			open = true
			cur = schema.LineRange{Start: i + 1}
		}
		cur.End = i + 1
	}
	if open {
		hunks = append(hunks, cur)
	}
	return hunks
}

func splitLines(content []byte) []string {
	lines := strings.Split(string(content), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}
