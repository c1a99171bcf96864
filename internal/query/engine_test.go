package query

import (
	"testing"
	"time"

	"lore/internal/config"
	"lore/internal/notes"
	"lore/internal/notes/notestest"
	"lore/internal/schema"
	"lore/internal/slogutil"
)

const (
	commitOne   = "1111111111111111111111111111111111111111"
	commitTwo   = "2222222222222222222222222222222222222222"
	commitThree = "3333333333333333333333333333333333333333"
	commitOld   = "0000000000000000000000000000000000000000"

	loopFile = "internal/retry/loop.go"
)

// queryClock pins "now" so age decay is deterministic in every test.
var queryClock = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T, opts Options) (*Engine, *notestest.Fake) {
	t.Helper()
	fake := notestest.NewFake()
	if opts.Now == nil {
		opts.Now = func() time.Time { return queryClock }
	}
	e := NewEngine(fake, config.DefaultConfig(), slogutil.NewDiscardLogger(), opts)
	return e, fake
}

// seedNote serializes and stores an annotation, registering the commit.
func seedNote(t *testing.T, fake *notestest.Fake, ann *schema.Annotation) {
	t.Helper()
	fake.AddCommit(ann.Commit, ann.Provenance.Author, ann.Narrative.Summary, ann.CreatedAt)
	payload, err := schema.Serialize(ann)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	fake.SetNote(ann.Commit, payload)
}

// loopAnnotation is the standard fixture: a contract at lines 10-20 on
// nextDelay and a hazard at lines 50-60, written two days before the
// pinned clock.
func loopAnnotation() *schema.Annotation {
	return &schema.Annotation{
		Schema:    schema.CurrentTag,
		Commit:    commitOne,
		CreatedAt: queryClock.Add(-48 * time.Hour),
		Narrative: schema.Narrative{
			Summary:    "Cap retry backoff at 30s so recovery is bounded",
			Motivation: "uncapped backoff stalled recovery after long outages",
		},
		Markers: []schema.Marker{
			{
				Kind:        schema.MarkerContract,
				File:        loopFile,
				Anchor:      "nextDelay",
				Lines:       &schema.LineRange{Start: 10, End: 20},
				Description: "delay never exceeds 30s",
				Basis:       schema.BasisTested,
			},
			{
				Kind:        schema.MarkerHazard,
				File:        loopFile,
				Lines:       &schema.LineRange{Start: 50, End: 60},
				Description: "jitter seeding is process-global",
			},
		},
		Decisions: []schema.Decision{
			{What: "cap backoff instead of bounding attempts", Why: "callers depend on eventual delivery", Stability: schema.StabilityPermanent},
		},
		Provenance: schema.Provenance{
			WritePath: schema.WritePathLive,
			Author:    "Dana Whitfield <dana@example.com>",
		},
	}
}

// blameWholeFile attributes the fixture file to commitOne and commitTwo.
func blameWholeFile(fake *notestest.Fake) {
	fake.SetBlame(loopFile,
		notes.BlameSpan{Commit: commitOne, Start: 1, End: 40},
		notes.BlameSpan{Commit: commitTwo, Start: 41, End: 80},
	)
}

