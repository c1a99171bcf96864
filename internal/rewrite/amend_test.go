package rewrite

import (
	"context"
	"strings"
	"testing"

	"lore/internal/schema"
)

func TestAmendCarriesAnnotation(t *testing.T) {
	s, fake := newSynthesizer(t)

	old := sourceAnnotationFixture(sourceA, "Bound the queue drain to one goroutine")
	seedSource(t, fake, old)
	fake.AddCommit(targetD, "Priya Nataraj <priya@example.com>", "Bound the queue drain (amended)", rewriteClock)
	fake.SetChanged(sourceA, targetD, "internal/send/queue.go")

	res, err := s.Synthesize(context.Background(), KindAmend, []string{sourceA}, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt == nil {
		t.Fatal("Receipt = nil, want a written annotation")
	}
	if res.SourcesAnnotated != 1 {
		t.Errorf("SourcesAnnotated = %d, want 1", res.SourcesAnnotated)
	}

	got := readBack(t, fake, targetD)
	if got.Narrative.Summary != old.Narrative.Summary {
		t.Errorf("Summary = %q, want the original carried over", got.Narrative.Summary)
	}
	if len(got.Markers) != 1 || got.Markers[0].Anchor != "drain" {
		t.Errorf("Markers = %+v, want the original marker", got.Markers)
	}
	if got.Provenance.WritePath != schema.WritePathAmendMigrated {
		t.Errorf("WritePath = %s, want amend-migrated", got.Provenance.WritePath)
	}
	if len(got.Provenance.SourceCommits) != 1 || got.Provenance.SourceCommits[0] != sourceA {
		t.Errorf("SourceCommits = %v, want [%s]", got.Provenance.SourceCommits, sourceA)
	}
	if got.Provenance.Author != old.Provenance.Author {
		t.Errorf("Author = %q, want the original author", got.Provenance.Author)
	}
	if !strings.Contains(got.Provenance.Notes, "amend of") ||
		!strings.Contains(got.Provenance.Notes, "internal/send/queue.go") {
		t.Errorf("Notes = %q, want the amend summary", got.Provenance.Notes)
	}
	// The original note stays put; orphaning is the caller's concern.
	if fake.Note(sourceA) == nil {
		t.Error("source annotation removed; amend must not touch the original")
	}
}

func TestAmendUnannotatedSourceSkips(t *testing.T) {
	s, fake := newSynthesizer(t)
	fake.AddCommit(sourceA, "x", "original", rewriteClock)
	fake.AddCommit(targetD, "x", "amended", rewriteClock)

	res, err := s.Synthesize(context.Background(), KindAmend, []string{sourceA}, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt != nil {
		t.Errorf("Receipt = %+v, want nil for an unannotated source", res.Receipt)
	}
	if fake.Note(targetD) != nil {
		t.Error("annotation written despite nothing to carry")
	}
}

func TestAmendUnreachableSourceSkips(t *testing.T) {
	s, fake := newSynthesizer(t)
	// sourceA never registered: history already garbage-collected it.
	fake.AddCommit(targetD, "x", "amended", rewriteClock)

	res, err := s.Synthesize(context.Background(), KindAmend, []string{sourceA}, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v, want skip", err)
	}
	if res.Receipt != nil || res.SourcesAnnotated != 0 {
		t.Errorf("result = %+v, want a skip", res)
	}
}

func TestAmendReplacesRacingHookNote(t *testing.T) {
	s, fake := newSynthesizer(t)

	seedSource(t, fake, sourceAnnotationFixture(sourceA, "Bound the queue drain"))
	racing := sourceAnnotationFixture(targetD, "racing hook write")
	seedSource(t, fake, racing)

	res, err := s.Synthesize(context.Background(), KindAmend, []string{sourceA}, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt == nil || !res.Receipt.Forced {
		t.Fatalf("Receipt = %+v, want a forced replacement", res.Receipt)
	}
	got := readBack(t, fake, targetD)
	if got.Narrative.Summary != "Bound the queue drain" {
		t.Errorf("Summary = %q, want the synthesized record to win", got.Narrative.Summary)
	}
}
