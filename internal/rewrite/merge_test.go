package rewrite

import (
	"context"
	"testing"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

const (
	parentOne = "1111111111111111111111111111111111111111"
	parentTwo = "2222222222222222222222222222222222222222"
)

func TestMergeAnnotatesResolutionHunks(t *testing.T) {
	s, fake := newSynthesizer(t)

	fake.AddCommit(parentOne, "x", "branch one", rewriteClock)
	fake.AddCommit(parentTwo, "x", "branch two", rewriteClock)
	fake.AddCommit(targetD, "x", "Merge branch 'retry-hardening'", rewriteClock)
	fake.SetParents(targetD, parentOne, parentTwo)

	const file = "internal/send/retry.go"
	fake.SetChanged(parentOne, targetD, file)
	fake.SetChanged(parentTwo, targetD, file, "internal/send/other.go")

	fake.SetFileAt(parentOne, file, []byte("func retry() {\n\tlimit := 3\n\tsend()\n}\n"))
	fake.SetFileAt(parentTwo, file, []byte("func retry() {\n\tlimit := 5\n\tsend()\n}\n"))
	// The resolver picked neither limit and added a guard: lines 2-3 match
	// neither parent.
	fake.SetFileAt(targetD, file, []byte("func retry() {\n\tlimit := 4\n\tguardShutdown()\n\tsend()\n}\n"))

	res, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt == nil {
		t.Fatal("Receipt = nil, want an annotation on the merge commit")
	}
	if len(res.ConflictFiles) != 1 || res.ConflictFiles[0] != file {
		t.Errorf("ConflictFiles = %v, want [%s]", res.ConflictFiles, file)
	}

	got := readBack(t, fake, targetD)
	if got.Narrative.Summary != "Merge branch 'retry-hardening'" {
		t.Errorf("Summary = %q, want the merge subject", got.Narrative.Summary)
	}
	if len(got.Markers) != 1 {
		t.Fatalf("Markers = %+v, want one resolution hunk", got.Markers)
	}
	m := got.Markers[0]
	if m.Kind != schema.MarkerHazard || m.File != file {
		t.Errorf("marker = %+v", m)
	}
	if m.Lines == nil || m.Lines.Start != 2 || m.Lines.End != 3 {
		t.Errorf("Lines = %+v, want 2-3", m.Lines)
	}
	if got.Provenance.WritePath != schema.WritePathSquashSynthesized {
		t.Errorf("WritePath = %s", got.Provenance.WritePath)
	}
	if len(got.Provenance.SourceCommits) != 2 {
		t.Errorf("SourceCommits = %v, want both parents", got.Provenance.SourceCommits)
	}
}

func TestMergeSplitsDisjointHunks(t *testing.T) {
	s, fake := newSynthesizer(t)

	fake.AddCommit(parentOne, "x", "one", rewriteClock)
	fake.AddCommit(parentTwo, "x", "two", rewriteClock)
	fake.AddCommit(targetD, "x", "merge", rewriteClock)
	fake.SetParents(targetD, parentOne, parentTwo)

	const file = "config.toml"
	fake.SetChanged(parentOne, targetD, file)
	fake.SetChanged(parentTwo, targetD, file)
	fake.SetFileAt(parentOne, file, []byte("a\nb\nc\nd\n"))
	fake.SetFileAt(parentTwo, file, []byte("a\nb2\nc\nd\n"))
	// Line 2 is new; blank line 3 bridges nothing here since line 4 is
	// inherited; line 5 is new again.
	fake.SetFileAt(targetD, file, []byte("a\nb3\n\nc\nd9\n"))

	res, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	got := readBack(t, fake, res.Target)
	if len(got.Markers) != 2 {
		t.Fatalf("Markers = %+v, want two disjoint hunks", got.Markers)
	}
	if got.Markers[0].Lines.Start != 2 || got.Markers[0].Lines.End != 2 {
		t.Errorf("first hunk = %+v, want 2-2", got.Markers[0].Lines)
	}
	if got.Markers[1].Lines.Start != 5 || got.Markers[1].Lines.End != 5 {
		t.Errorf("second hunk = %+v, want 5-5", got.Markers[1].Lines)
	}
}

func TestMergeBlankLinesBridgeAHunk(t *testing.T) {
	s, fake := newSynthesizer(t)

	fake.AddCommit(parentOne, "x", "one", rewriteClock)
	fake.AddCommit(parentTwo, "x", "two", rewriteClock)
	fake.AddCommit(targetD, "x", "merge", rewriteClock)
	fake.SetParents(targetD, parentOne, parentTwo)

	const file = "notes.md"
	fake.SetChanged(parentOne, targetD, file)
	fake.SetChanged(parentTwo, targetD, file)
	fake.SetFileAt(parentOne, file, []byte("intro\nold-one\n"))
	fake.SetFileAt(parentTwo, file, []byte("intro\nold-two\n"))
	fake.SetFileAt(targetD, file, []byte("intro\nnew-one\n\nnew-two\n"))

	_, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	got := readBack(t, fake, targetD)
	if len(got.Markers) != 1 {
		t.Fatalf("Markers = %+v, want one bridged hunk", got.Markers)
	}
	if got.Markers[0].Lines.Start != 2 || got.Markers[0].Lines.End != 4 {
		t.Errorf("hunk = %+v, want 2-4 spanning the blank line", got.Markers[0].Lines)
	}
}

func TestMergeCleanMergeSkips(t *testing.T) {
	s, fake := newSynthesizer(t)

	fake.AddCommit(parentOne, "x", "one", rewriteClock)
	fake.AddCommit(parentTwo, "x", "two", rewriteClock)
	fake.AddCommit(targetD, "x", "merge", rewriteClock)
	fake.SetParents(targetD, parentOne, parentTwo)

	const file = "pkg/clean.go"
	fake.SetChanged(parentOne, targetD, file)
	fake.SetChanged(parentTwo, targetD, file)
	fake.SetFileAt(parentOne, file, []byte("left()\nshared()\n"))
	fake.SetFileAt(parentTwo, file, []byte("right()\nshared()\n"))
	// Every result line exists in some parent.
	fake.SetFileAt(targetD, file, []byte("left()\nright()\nshared()\n"))

	res, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt != nil {
		t.Errorf("Receipt = %+v, want skip for a clean merge", res.Receipt)
	}
	if fake.Note(targetD) != nil {
		t.Error("annotation written for a merge with no resolution work")
	}
}

func TestMergeFileTakenWholesaleIgnored(t *testing.T) {
	s, fake := newSynthesizer(t)

	fake.AddCommit(parentOne, "x", "one", rewriteClock)
	fake.AddCommit(parentTwo, "x", "two", rewriteClock)
	fake.AddCommit(targetD, "x", "merge", rewriteClock)
	fake.SetParents(targetD, parentOne, parentTwo)

	// Changed only against parentTwo: the merge took parentOne's version
	// wholesale, so nothing was resolved by hand.
	fake.SetChanged(parentTwo, targetD, "pkg/wholesale.go")
	fake.SetFileAt(targetD, "pkg/wholesale.go", []byte("entirely from one side\n"))

	res, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Receipt != nil || len(res.ConflictFiles) != 0 {
		t.Errorf("result = %+v, want no candidates", res)
	}
}

func TestMergeRejectsNonMergeCommit(t *testing.T) {
	s, fake := newSynthesizer(t)
	fake.AddCommit(targetD, "x", "ordinary commit", rewriteClock)
	fake.SetParents(targetD, parentOne)

	_, err := s.Synthesize(context.Background(), KindMerge, nil, targetD)
	le, ok := err.(*lerrors.LoreError)
	if !ok || le.Code != lerrors.ValidationFailed {
		t.Errorf("Synthesize() error = %v, want VALIDATION_FAILED", err)
	}
}
