package query

import (
	"context"
	"testing"
	"time"

	"lore/internal/notes"
	"lore/internal/schema"
)

// historyAt builds a minimal annotation for one commit in a file's history.
func historyAt(commit, summary string, at time.Time) *schema.Annotation {
	return &schema.Annotation{
		Schema:    schema.CurrentTag,
		Commit:    commit,
		CreatedAt: at,
		Narrative: schema.Narrative{Summary: summary},
		Markers: []schema.Marker{{
			Kind:        schema.MarkerContract,
			File:        loopFile,
			Anchor:      "nextDelay",
			Description: "retry loop change",
		}},
		Provenance: schema.Provenance{WritePath: schema.WritePathLive},
	}
}

func TestTimelineChronologicalOrder(t *testing.T) {
	e, fake := testEngine(t, Options{})

	seedNote(t, fake, historyAt(commitOld, "first shape of the loop", queryClock.Add(-90*24*time.Hour)))
	seedNote(t, fake, historyAt(commitOne, "cap backoff", queryClock.Add(-48*time.Hour)))
	seedNote(t, fake, historyAt(commitTwo, "add jitter", queryClock.Add(-2*time.Hour)))

	// Path log arrives newest first, the way git log emits it.
	fake.SetPathLog(loopFile,
		notes.CommitMeta{Commit: commitTwo},
		notes.CommitMeta{Commit: commitOne},
		notes.CommitMeta{Commit: commitOld},
	)

	resp, err := e.Timeline(context.Background(), FileScope(loopFile))
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	res := resp.Data.(*TimelineResult)
	if res.Total != 3 || len(res.Entries) != 3 {
		t.Fatalf("got %d entries (total %d), want 3", len(res.Entries), res.Total)
	}
	want := []string{commitOld, commitOne, commitTwo}
	for i, entry := range res.Entries {
		if entry.Commit != want[i] {
			t.Errorf("Entries[%d].Commit = %s, want %s (oldest first)", i, entry.Commit, want[i])
		}
	}
	if res.Entries[0].Summary != "first shape of the loop" {
		t.Errorf("Summary = %q", res.Entries[0].Summary)
	}
}

func TestTimelineSkipsUnannotatedCommits(t *testing.T) {
	e, fake := testEngine(t, Options{})

	seedNote(t, fake, historyAt(commitOne, "cap backoff", queryClock.Add(-48*time.Hour)))
	fake.AddCommit(commitTwo, "x", "refactor with no note", queryClock.Add(-time.Hour))
	fake.SetPathLog(loopFile,
		notes.CommitMeta{Commit: commitTwo},
		notes.CommitMeta{Commit: commitOne},
	)

	resp, err := e.Timeline(context.Background(), FileScope(loopFile))
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	res := resp.Data.(*TimelineResult)
	if len(res.Entries) != 1 || res.Entries[0].Commit != commitOne {
		t.Fatalf("entries = %+v, want just the annotated commit", res.Entries)
	}
}

func TestTimelineFollowsSynthesisSourcesOneHop(t *testing.T) {
	e, fake := testEngine(t, Options{})

	// commitOld was squashed away: annotated, but absent from the path log.
	// Its own source link must not be followed further.
	old := historyAt(commitOld, "original pre-squash record", queryClock.Add(-30*24*time.Hour))
	old.Provenance.SourceCommits = []string{commitThree}
	seedNote(t, fake, old)
	seedNote(t, fake, historyAt(commitThree, "two hops out", queryClock.Add(-60*24*time.Hour)))

	synth := historyAt(commitTwo, "squash of the retry work", queryClock.Add(-time.Hour))
	synth.Provenance.WritePath = schema.WritePathSquashSynthesized
	synth.Provenance.SourceCommits = []string{commitOld}
	seedNote(t, fake, synth)

	fake.SetPathLog(loopFile, notes.CommitMeta{Commit: commitTwo})

	resp, err := e.Timeline(context.Background(), FileScope(loopFile))
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	res := resp.Data.(*TimelineResult)
	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want synthesized + its source", len(res.Entries))
	}
	if res.Entries[0].Commit != commitOld || res.Entries[1].Commit != commitTwo {
		t.Errorf("entries = [%s, %s], want source then synthesis", res.Entries[0].Commit, res.Entries[1].Commit)
	}
	if !res.Entries[1].Synthesized {
		t.Error("squash-synthesized entry not flagged")
	}
	if res.Entries[0].Synthesized {
		t.Error("live source entry flagged as synthesized")
	}
}

func TestTimelineUnreadableSourceWarns(t *testing.T) {
	e, fake := testEngine(t, Options{})

	synth := historyAt(commitTwo, "squash of the retry work", queryClock.Add(-time.Hour))
	synth.Provenance.WritePath = schema.WritePathSquashSynthesized
	synth.Provenance.SourceCommits = []string{"dddddddddddddddddddddddddddddddddddddddd"}
	seedNote(t, fake, synth)
	fake.SetPathLog(loopFile, notes.CommitMeta{Commit: commitTwo})

	resp, err := e.Timeline(context.Background(), FileScope(loopFile))
	if err != nil {
		t.Fatalf("Timeline() error = %v, want warning instead", err)
	}
	res := resp.Data.(*TimelineResult)
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %+v, want just the synthesized record", res.Entries)
	}
	found := false
	for _, w := range resp.Warnings {
		if w.Code == "source-unreadable" {
			found = true
		}
	}
	if !found {
		t.Errorf("no source-unreadable warning in %+v", resp.Warnings)
	}
}

func TestTimelineCapKeepsRecentWindow(t *testing.T) {
	e, fake := testEngine(t, Options{})
	e.cfg.Query.MaxTimeline = 2

	seedNote(t, fake, historyAt(commitOld, "oldest", queryClock.Add(-90*24*time.Hour)))
	seedNote(t, fake, historyAt(commitOne, "middle", queryClock.Add(-48*time.Hour)))
	seedNote(t, fake, historyAt(commitTwo, "newest", queryClock.Add(-time.Hour)))
	fake.SetPathLog(loopFile,
		notes.CommitMeta{Commit: commitTwo},
		notes.CommitMeta{Commit: commitOne},
		notes.CommitMeta{Commit: commitOld},
	)

	resp, err := e.Timeline(context.Background(), FileScope(loopFile))
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	res := resp.Data.(*TimelineResult)
	if res.Total != 3 || len(res.Entries) != 2 {
		t.Fatalf("shown %d of total %d, want 2 of 3", len(res.Entries), res.Total)
	}
	// The cut falls on deep history, not on recent entries.
	if res.Entries[0].Commit != commitOne || res.Entries[1].Commit != commitTwo {
		t.Errorf("entries = %+v, want the two most recent", res.Entries)
	}
	if resp.Meta == nil || resp.Meta.Truncation == nil || resp.Meta.Truncation.Reason != "max-timeline" {
		t.Error("truncation not surfaced in meta")
	}
}

func TestTimelineAnchorScopeDropsUnrelatedRecords(t *testing.T) {
	e, fake := testEngine(t, Options{})

	seedNote(t, fake, loopAnnotation())
	other := historyAt(commitTwo, "header rendering tweak", queryClock.Add(-time.Hour))
	other.Markers[0].Anchor = "renderHeader"
	seedNote(t, fake, other)
	fake.SetPathLog(loopFile,
		notes.CommitMeta{Commit: commitTwo},
		notes.CommitMeta{Commit: commitOne},
	)

	resp, err := e.Timeline(context.Background(), AnchorScope(loopFile, "nextDelay"))
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	res := resp.Data.(*TimelineResult)
	if len(res.Entries) != 1 || res.Entries[0].Commit != commitOne {
		t.Fatalf("entries = %+v, want only the nextDelay record", res.Entries)
	}
}
