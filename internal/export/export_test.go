package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	lerrors "lore/internal/errors"
	"lore/internal/notes/notestest"
	"lore/internal/schema"
	"lore/internal/slogutil"
)

const (
	commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var exportClock = time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)

func annotationFor(commit, summary string) *schema.Annotation {
	return &schema.Annotation{
		Schema:    schema.CurrentTag,
		Commit:    commit,
		CreatedAt: exportClock,
		Narrative: schema.Narrative{Summary: summary},
		Markers: []schema.Marker{{
			Kind:        schema.MarkerContract,
			File:        "internal/api/limits.go",
			Anchor:      "maxBodyBytes",
			Description: "request bodies cap at 1MiB",
		}},
		Provenance: schema.Provenance{WritePath: schema.WritePathLive},
	}
}

func seed(t *testing.T, fake *notestest.Fake, ann *schema.Annotation) []byte {
	t.Helper()
	fake.AddCommit(ann.Commit, "x", ann.Narrative.Summary, ann.CreatedAt)
	payload, err := schema.Serialize(ann)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	fake.SetNote(ann.Commit, payload)
	return payload
}

func TestExportImportRoundTrip(t *testing.T) {
	src := notestest.NewFake()
	wantA := seed(t, src, annotationFor(commitA, "Cap request bodies"))

	// commitB carries a correction: its note is two JSON documents and must
	// survive the trip byte for byte.
	seed(t, src, annotationFor(commitB, "Reject oversized uploads early"))
	amended, err := schema.AppendCorrection(src.Note(commitB), schema.Correction{
		Field:       "narrative.summary",
		NewValue:    "Reject oversized uploads before buffering",
		CorrectedAt: exportClock.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("AppendCorrection() error = %v", err)
	}
	src.SetNote(commitB, amended)

	var buf bytes.Buffer
	stats, err := Export(context.Background(), src, "refs/notes/lore", &buf)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if stats.Annotations != 2 {
		t.Errorf("Annotations = %d, want 2", stats.Annotations)
	}

	dst := notestest.NewFake()
	dst.AddCommit(commitA, "x", "s", exportClock)
	dst.AddCommit(commitB, "x", "s", exportClock)

	istats, err := Import(context.Background(), dst, &buf, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if istats.Imported != 2 || istats.Corrupt != 0 {
		t.Errorf("ImportStats = %+v, want 2 imported", istats)
	}

	if !bytes.Equal(dst.Note(commitA), wantA) {
		t.Error("commitA payload changed across the round trip")
	}
	if !bytes.Equal(dst.Note(commitB), amended) {
		t.Error("corrected payload changed across the round trip")
	}
}

func TestExportManifestLeadsTheStream(t *testing.T) {
	src := notestest.NewFake()
	seed(t, src, annotationFor(commitA, "Cap request bodies"))

	var buf bytes.Buffer
	if _, err := Export(context.Background(), src, "refs/notes/lore", &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	zr, err := zstd.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer zr.Close()
	sc := bufio.NewScanner(zr)
	if !sc.Scan() {
		t.Fatalf("empty stream: %v", sc.Err())
	}
	var m Manifest
	if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
		t.Fatalf("manifest line: %v", err)
	}
	if m.Format != FormatTag || m.Ref != "refs/notes/lore" {
		t.Errorf("Manifest = %+v", m)
	}
}

func TestExportPreservesOldSchemaVersions(t *testing.T) {
	src := notestest.NewFake()
	src.AddCommit(commitA, "x", "s", exportClock)
	v1 := []byte(`{"schema": "lore/v1", "commit": "` + commitA + `", "writtenAt": "2024-03-01T00:00:00Z", "regions": [{"file": "a.go", "intent": "legacy"}]}`)
	src.SetNote(commitA, v1)

	var buf bytes.Buffer
	if _, err := Export(context.Background(), src, "refs/notes/lore", &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dst := notestest.NewFake()
	dst.AddCommit(commitA, "x", "s", exportClock)
	if _, err := Import(context.Background(), dst, &buf, slogutil.NewDiscardLogger()); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	// Restore keeps the stored version; migration stays a read-time concern.
	if !bytes.Equal(dst.Note(commitA), v1) {
		t.Errorf("stored payload = %s, want the original v1 bytes", dst.Note(commitA))
	}
}

// writeStream hand-builds an export stream from raw JSONL lines.
func writeStream(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &buf
}

func manifestLine(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(Manifest{Format: FormatTag, Ref: "refs/notes/lore", ExportedAt: exportClock})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func exportLine(t *testing.T, commit string, payload []byte) string {
	t.Helper()
	data, err := json.Marshal(line{Commit: commit, Payload: string(payload)})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestImportSkipsCorruptLines(t *testing.T) {
	good, err := schema.Serialize(annotationFor(commitA, "Cap request bodies"))
	if err != nil {
		t.Fatal(err)
	}
	buf := writeStream(t,
		manifestLine(t),
		`{"commit": "`+commitB+`", "payload": "not an annotation"}`,
		"garbage line",
		exportLine(t, commitA, good),
	)

	dst := notestest.NewFake()
	dst.AddCommit(commitA, "x", "s", exportClock)
	dst.AddCommit(commitB, "x", "s", exportClock)

	stats, err := Import(context.Background(), dst, buf, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Imported != 1 || stats.Corrupt != 2 {
		t.Errorf("stats = %+v, want 1 imported, 2 corrupt", stats)
	}
	if dst.Note(commitB) != nil {
		t.Error("corrupt payload was written")
	}
}

func TestImportNeverOverwrites(t *testing.T) {
	payload, err := schema.Serialize(annotationFor(commitA, "from the backup"))
	if err != nil {
		t.Fatal(err)
	}
	buf := writeStream(t, manifestLine(t), exportLine(t, commitA, payload))

	dst := notestest.NewFake()
	existing := seed(t, dst, annotationFor(commitA, "written after the backup"))

	stats, err := Import(context.Background(), dst, buf, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Existing != 1 || stats.Imported != 0 {
		t.Errorf("stats = %+v, want 1 existing", stats)
	}
	if !bytes.Equal(dst.Note(commitA), existing) {
		t.Error("import overwrote a newer annotation")
	}
}

func TestImportCountsMissingCommits(t *testing.T) {
	payload, err := schema.Serialize(annotationFor(commitA, "Cap request bodies"))
	if err != nil {
		t.Fatal(err)
	}
	buf := writeStream(t, manifestLine(t), exportLine(t, commitA, payload))

	// The destination repository never had commitA.
	stats, err := Import(context.Background(), notestest.NewFake(), buf, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Missing != 1 || stats.Imported != 0 {
		t.Errorf("stats = %+v, want 1 missing", stats)
	}
}

func TestImportRejectsForeignFormat(t *testing.T) {
	buf := writeStream(t, `{"format": "other-tool/v2"}`)

	_, err := Import(context.Background(), notestest.NewFake(), buf, slogutil.NewDiscardLogger())
	le, ok := err.(*lerrors.LoreError)
	if !ok || le.Code != lerrors.UnknownSchemaVersion {
		t.Errorf("Import() error = %v, want UNKNOWN_SCHEMA_VERSION", err)
	}
}

func TestImportRejectsNonZstdInput(t *testing.T) {
	_, err := Import(context.Background(), notestest.NewFake(),
		strings.NewReader("plain text, not an export"), slogutil.NewDiscardLogger())
	le, ok := err.(*lerrors.LoreError)
	if !ok || le.Code != lerrors.MalformedPayload {
		t.Errorf("Import() error = %v, want MALFORMED_PAYLOAD", err)
	}
}
