package rewrite

import (
	"context"
	"fmt"
	"strings"

	"lore/internal/annotate"
	"lore/internal/schema"
)

// amend carries the old commit's annotation onto its amended replacement.
// The content survives unchanged; provenance records the migration and what
// the amend touched. An unannotated source is a skip, not an error.
func (s *Synthesizer) amend(ctx context.Context, source, target string) (*Result, error) {
	res := &Result{Kind: KindAmend, Target: target, Sources: []string{source}}

	old := s.sourceAnnotation(ctx, source)
	if old == nil {
		s.logger.Info("amend carried no annotation", "source", shortID(source), "target", shortID(target))
		return res, nil
	}
	res.SourcesAnnotated = 1

	receipt, err := s.pipeline.Write(ctx, target, annotate.FromAnnotation(old), annotate.Options{
		WritePath:      schema.WritePathAmendMigrated,
		Force:          true,
		Author:         old.Provenance.Author,
		SourceCommits:  []string{source},
		SynthesisNotes: s.amendNote(ctx, source, target),
	})
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt
	return res, nil
}

// amendNote summarizes what the amend changed. The old commit may already
// be unreachable; the note then names just the migration.
func (s *Synthesizer) amendNote(ctx context.Context, source, target string) string {
	note := fmt.Sprintf("amend of %s", shortID(source))
	files, err := s.backend.ChangedFiles(ctx, source, target)
	if err != nil || len(files) == 0 {
		return note
	}
	if len(files) > 5 {
		return fmt.Sprintf("%s; touched %d files", note, len(files))
	}
	return fmt.Sprintf("%s; touched %s", note, strings.Join(files, ", "))
}
