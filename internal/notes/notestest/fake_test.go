package notestest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	lerrors "lore/internal/errors"
	"lore/internal/notes"
)

func TestFakeReadDistinguishesMissingNoteFromMissingCommit(t *testing.T) {
	f := NewFake()
	f.AddCommit("abc123", "Dana", "add parser", time.Now())

	payload, err := f.Read(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if payload != nil {
		t.Errorf("expected nil payload for unannotated commit, got %q", payload)
	}

	_, err = f.Read(context.Background(), "nope")
	var le *lerrors.LoreError
	if !errors.As(err, &le) || le.Code != lerrors.CommitNotFound {
		t.Errorf("expected COMMIT_NOT_FOUND for unknown commit, got %v", err)
	}
}

func TestFakeCreateModeConflicts(t *testing.T) {
	f := NewFake()
	f.AddCommit("abc123", "Dana", "add parser", time.Now())
	f.SetNote("abc123", []byte("existing"))

	err := f.Write(context.Background(), "abc123", []byte("new"), notes.WriteOptions{})
	var le *lerrors.LoreError
	if !errors.As(err, &le) || le.Code != lerrors.WriteConflict {
		t.Fatalf("expected WRITE_CONFLICT, got %v", err)
	}
	if got := f.Note("abc123"); string(got) != "existing" {
		t.Errorf("conflicting write mutated the note: %q", got)
	}

	err = f.Write(context.Background(), "abc123", []byte("new"), notes.WriteOptions{Mode: notes.ModeForce})
	if err != nil {
		t.Fatalf("force write failed: %v", err)
	}
}

func TestFakeExpectedPriorSum(t *testing.T) {
	f := NewFake()
	f.AddCommit("abc123", "Dana", "add parser", time.Now())
	f.SetNote("abc123", []byte("v1"))

	sum := notes.PayloadSum([]byte("v1"))
	err := f.Write(context.Background(), "abc123", []byte("v2"), notes.WriteOptions{
		Mode:             notes.ModeForce,
		ExpectedPriorSum: sum,
	})
	if err != nil {
		t.Fatalf("write with matching prior sum failed: %v", err)
	}

	err = f.Write(context.Background(), "abc123", []byte("v3"), notes.WriteOptions{
		Mode:             notes.ModeForce,
		ExpectedPriorSum: sum, // stale: the note is now "v2"
	})
	var le *lerrors.LoreError
	if !errors.As(err, &le) || le.Code != lerrors.WriteConflict {
		t.Errorf("expected WRITE_CONFLICT for stale prior sum, got %v", err)
	}
}

func TestFakeConcurrentCreateSingleWinner(t *testing.T) {
	f := NewFake()
	f.AddCommit("abc123", "Dana", "add parser", time.Now())

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.Write(context.Background(), "abc123", []byte{byte('a' + i)}, notes.WriteOptions{})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winning create, got %d", won)
	}
}

func TestFakeBlameClipsToRange(t *testing.T) {
	f := NewFake()
	f.SetBlame("svc/retry.go",
		notes.BlameSpan{Commit: "aaa", Start: 1, End: 10},
		notes.BlameSpan{Commit: "bbb", Start: 11, End: 30},
	)

	spans, err := f.Blame(context.Background(), "svc/retry.go", 8, 12)
	if err != nil {
		t.Fatalf("Blame() error = %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Start != 8 || spans[0].End != 10 {
		t.Errorf("first span = %+v, want 8..10", spans[0])
	}
	if spans[1].Start != 11 || spans[1].End != 12 {
		t.Errorf("second span = %+v, want 11..12", spans[1])
	}
}
