package annotate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	lerrors "lore/internal/errors"
	"lore/internal/notes/notestest"
	"lore/internal/schema"
	"lore/internal/slogutil"
)

const commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func testPipeline(t *testing.T) (*Pipeline, *notestest.Fake) {
	t.Helper()
	fake := notestest.NewFake()
	fake.AddCommit(commitA, "Dana Whitfield <dana@example.com>", "fix retry backoff",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := New(fake, nil, slogutil.NewDiscardLogger())
	p.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	return p, fake
}

func validInput() Input {
	return Input{
		Narrative: schema.Narrative{
			Summary:    "Cap retry backoff at 30s so recovery is bounded",
			Motivation: "Uncapped backoff stalled recovery after long outages",
		},
		Markers: []schema.Marker{
			{
				Kind:        schema.MarkerContract,
				File:        "internal/retry/loop.go",
				Anchor:      "nextDelay",
				Lines:       &schema.LineRange{Start: 41, End: 58},
				Description: "delay never exceeds 30s",
			},
		},
		Decisions: []schema.Decision{
			{What: "cap backoff instead of bounding attempts", Why: "callers depend on eventual delivery"},
		},
	}
}

func TestWriteStampsProvenanceAndPersists(t *testing.T) {
	p, fake := testPipeline(t)

	receipt, err := p.Write(context.Background(), commitA, validInput(), Options{})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if receipt.Commit != commitA {
		t.Errorf("receipt.Commit = %q", receipt.Commit)
	}
	if receipt.Schema != schema.CurrentTag {
		t.Errorf("receipt.Schema = %q, want %q", receipt.Schema, schema.CurrentTag)
	}
	if receipt.WritePath != schema.WritePathLive {
		t.Errorf("receipt.WritePath = %q, want live default", receipt.WritePath)
	}

	stored := fake.Note(commitA)
	if stored == nil {
		t.Fatal("no note persisted")
	}
	ann, info, err := schema.Parse(stored)
	if err != nil {
		t.Fatalf("Parse(stored) error = %v", err)
	}
	if info.Migrated() {
		t.Error("fresh write required migration on read-back")
	}
	if ann.Provenance.WritePath != schema.WritePathLive {
		t.Errorf("stored WritePath = %q, want live", ann.Provenance.WritePath)
	}
	if ann.Provenance.Author != "Test Author <test@example.com>" {
		t.Errorf("stored Author = %q, want backend identity", ann.Provenance.Author)
	}
	if !ann.CreatedAt.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v, want pipeline clock", ann.CreatedAt)
	}
	// Normalization fills defaults the caller omitted.
	if ann.Markers[0].Basis != schema.BasisStated {
		t.Errorf("contract basis = %q, want stated default", ann.Markers[0].Basis)
	}
	if ann.Decisions[0].Stability != schema.StabilityProvisional {
		t.Errorf("decision stability = %q, want provisional default", ann.Decisions[0].Stability)
	}
}

func TestWriteConflictLeavesOriginalIntact(t *testing.T) {
	p, fake := testPipeline(t)
	ctx := context.Background()

	if _, err := p.Write(ctx, commitA, validInput(), Options{}); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	original := fake.Note(commitA)

	second := validInput()
	second.Narrative.Summary = "A different explanation that must not clobber the first"
	_, err := p.Write(ctx, commitA, second, Options{})
	if err == nil {
		t.Fatal("second unforced Write() succeeded; expected conflict")
	}
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.WriteConflict {
		t.Fatalf("error = %v, want WRITE_CONFLICT", err)
	}
	details, ok := lerr.Details.(lerrors.ConflictDetails)
	if !ok || details.Commit != commitA {
		t.Errorf("Details = %+v, want ConflictDetails for %s", lerr.Details, commitA)
	}
	if details.WrittenAt == "" {
		t.Error("conflict details do not report when the existing record was written")
	}

	if !bytes.Equal(fake.Note(commitA), original) {
		t.Error("refused write still changed the stored bytes")
	}
}

func TestWriteForceReplacesExisting(t *testing.T) {
	p, fake := testPipeline(t)
	ctx := context.Background()

	if _, err := p.Write(ctx, commitA, validInput(), Options{}); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}

	replacement := validInput()
	replacement.Narrative.Summary = "Replacement after explicit force acknowledgement"
	receipt, err := p.Write(ctx, commitA, replacement, Options{Force: true})
	if err != nil {
		t.Fatalf("forced Write() error = %v", err)
	}
	if !receipt.Forced {
		t.Error("receipt does not record the force")
	}

	ann, _, err := schema.Parse(fake.Note(commitA))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ann.Narrative.Summary != replacement.Narrative.Summary {
		t.Errorf("stored summary = %q, want replacement", ann.Narrative.Summary)
	}
}

func TestWriteValidationRejectsBeforePersistence(t *testing.T) {
	p, fake := testPipeline(t)

	in := validInput()
	in.Narrative.Summary = ""
	_, err := p.Write(context.Background(), commitA, in, Options{})
	if err == nil {
		t.Fatal("Write() accepted an empty summary")
	}
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.ValidationFailed {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	if !strings.Contains(lerr.Message, "narrative.summary") {
		t.Errorf("message %q does not name the failing field", lerr.Message)
	}
	if fake.Note(commitA) != nil {
		t.Error("rejected write still persisted a note")
	}
}

func TestWriteSynthesisOptions(t *testing.T) {
	p, fake := testPipeline(t)

	sources := []string{
		"1111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222",
	}
	_, err := p.Write(context.Background(), commitA, validInput(), Options{
		WritePath:      schema.WritePathSquashSynthesized,
		Force:          true,
		SourceCommits:  sources,
		SynthesisNotes: "synthesized from 2 sources, 2 had annotations",
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	ann, _, err := schema.Parse(fake.Note(commitA))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ann.Provenance.WritePath != schema.WritePathSquashSynthesized {
		t.Errorf("WritePath = %q", ann.Provenance.WritePath)
	}
	if len(ann.Provenance.SourceCommits) != 2 {
		t.Errorf("SourceCommits = %v, want both sources", ann.Provenance.SourceCommits)
	}
	if ann.Provenance.Notes == "" {
		t.Error("synthesis notes were dropped")
	}
}

func TestQualityWarningsAreAdvisory(t *testing.T) {
	p, fake := testPipeline(t)

	in := Input{Narrative: schema.Narrative{Summary: "fix retry backoff"}}
	receipt, err := p.Write(context.Background(), commitA, in, Options{})
	if err != nil {
		t.Fatalf("Write() error = %v (warnings must not block)", err)
	}
	if fake.Note(commitA) == nil {
		t.Fatal("write with warnings did not persist")
	}

	got := map[string]bool{}
	for _, w := range receipt.Warnings {
		got[w.Code] = true
	}
	if !got[WarnEchoesSubject] {
		t.Errorf("warnings = %v, want %s (summary equals commit subject)", receipt.Warnings, WarnEchoesSubject)
	}
	if !got[WarnNoFacts] {
		t.Errorf("warnings = %v, want %s", receipt.Warnings, WarnNoFacts)
	}
}

func TestCorrectAppendsWithoutRewritingOriginal(t *testing.T) {
	p, fake := testPipeline(t)
	ctx := context.Background()

	if _, err := p.Write(ctx, commitA, validInput(), Options{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	original := fake.Note(commitA)

	receipt, err := p.Correct(ctx, commitA, schema.Correction{
		Field:    "markers[0].description",
		OldValue: "delay never exceeds 30s",
		NewValue: "delay never exceeds 30s; first retry is immediate",
		Reason:   "immediate first retry was missed",
	})
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if receipt.Author == "" {
		t.Error("correction was not stamped with an author")
	}

	amended := fake.Note(commitA)
	if !bytes.HasPrefix(amended, original) {
		t.Fatal("correction rewrote the original record bytes")
	}

	ann, _, err := schema.Parse(amended)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(ann.Corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(ann.Corrections))
	}
	if ann.Markers[0].Description != "delay never exceeds 30s" {
		t.Error("raw record no longer shows the pre-correction value")
	}
	if view := ann.CurrentView(); !strings.Contains(view.Markers[0].Description, "first retry is immediate") {
		t.Errorf("current view = %q, correction not folded", view.Markers[0].Description)
	}
}

func TestCorrectRequiresExistingAnnotation(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.Correct(context.Background(), commitA, schema.Correction{
		Field:    "narrative.summary",
		NewValue: "x",
		Reason:   "r",
	})
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.AnnotationNotFound {
		t.Fatalf("error = %v, want ANNOTATION_NOT_FOUND", err)
	}
}

func TestCorrectValidatesFields(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.Correct(context.Background(), commitA, schema.Correction{Field: "", NewValue: "", Reason: ""})
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.ValidationFailed {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
}

func TestWriteUnknownCommit(t *testing.T) {
	p, _ := testPipeline(t)

	_, err := p.Write(context.Background(), "ffffffffffffffffffffffffffffffffffffffff", validInput(), Options{})
	var lerr *lerrors.LoreError
	if !errors.As(err, &lerr) || lerr.Code != lerrors.CommitNotFound {
		t.Fatalf("error = %v, want COMMIT_NOT_FOUND", err)
	}
}
