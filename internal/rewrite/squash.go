package rewrite

import (
	"context"
	"fmt"
	"strings"

	"lore/internal/annotate"
	"lore/internal/schema"
)

// squash merges every annotated source into one record for the squashed
// commit. Markers dedupe by exact location and payload, decisions union by
// content, narratives concatenate in source order. Provenance lists every
// source commit, annotated or not, so the lineage stays reconstructible
// after the originals are garbage-collected.
func (s *Synthesizer) squash(ctx context.Context, sources []string, target string) (*Result, error) {
	res := &Result{Kind: KindSquash, Target: target, Sources: sources}

	var anns []*schema.Annotation
	for _, src := range sources {
		if ann := s.sourceAnnotation(ctx, src); ann != nil {
			anns = append(anns, ann)
		}
	}
	res.SourcesAnnotated = len(anns)
	if len(anns) == 0 {
		s.logger.Info("squash carried no annotations",
			"sources", len(sources), "target", shortID(target))
		return res, nil
	}

	in := mergeAnnotations(anns)
	receipt, err := s.pipeline.Write(ctx, target, in, annotate.Options{
		WritePath:     schema.WritePathSquashSynthesized,
		Force:         true,
		SourceCommits: sources,
		SynthesisNotes: fmt.Sprintf("synthesized from %d sources, %d had annotations",
			len(sources), len(anns)),
	})
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt
	return res, nil
}

// mergeAnnotations folds source records into one input, preserving source
// order and dropping exact duplicates.
func mergeAnnotations(anns []*schema.Annotation) annotate.Input {
	var in annotate.Input

	var summaries, motivations, followUps []string
	seenAlt := map[string]bool{}
	for _, ann := range anns {
		if sum := strings.TrimSpace(ann.Narrative.Summary); sum != "" {
			summaries = append(summaries, sum)
		}
		if mot := strings.TrimSpace(ann.Narrative.Motivation); mot != "" {
			motivations = append(motivations, mot)
		}
		if fu := strings.TrimSpace(ann.Narrative.FollowUp); fu != "" {
			followUps = append(followUps, fu)
		}
		for _, alt := range ann.Narrative.Alternatives {
			key := alt.Approach + "|" + alt.Reason
			if !seenAlt[key] {
				seenAlt[key] = true
				in.Narrative.Alternatives = append(in.Narrative.Alternatives, alt)
			}
		}
	}
	in.Narrative.Summary = strings.Join(summaries, "; ")
	in.Narrative.Motivation = strings.Join(motivations, "\n\n")
	in.Narrative.FollowUp = strings.Join(followUps, "; ")

	seenMarker := map[string]bool{}
	for _, ann := range anns {
		for _, m := range ann.Markers {
			key := m.LocationKey()
			if seenMarker[key] {
				continue
			}
			seenMarker[key] = true
			in.Markers = append(in.Markers, m)
		}
	}

	seenDecision := map[string]bool{}
	for _, ann := range anns {
		for _, d := range ann.Decisions {
			key := d.Key()
			if seenDecision[key] {
				continue
			}
			seenDecision[key] = true
			in.Decisions = append(in.Decisions, d)
		}
	}

	for _, ann := range anns {
		if ann.Effort != nil {
			in.Effort = ann.Effort
			break
		}
	}
	return in
}
