// Package notes defines the commit-and-notes backend interface lore is
// built on. Every other component reads and writes repository state through
// a Backend; nothing else in the repo shells out to git.
package notes

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// WriteMode selects the overwrite behavior of Backend.Write.
type WriteMode string

const (
	// ModeCreate fails when a note already exists for the commit.
	ModeCreate WriteMode = "create"
	// ModeForce replaces any existing note.
	ModeForce WriteMode = "force"
)

// WriteOptions controls a single note write.
type WriteOptions struct {
	Mode WriteMode

	// ExpectedPriorSum, when non-empty, is the PayloadSum of the bytes the
	// caller last read for this commit. The write fails with a conflict if
	// the stored note no longer matches, regardless of Mode. An empty sum
	// skips the check (the first implementation of the optimistic-
	// concurrency upgrade designed into the interface).
	ExpectedPriorSum string
}

// NotedCommit pairs an annotated commit with its note blob object.
type NotedCommit struct {
	Commit     string
	NoteObject string
}

// BlameSpan attributes a contiguous line range of the current file content
// to the commit that last touched it. Lines are 1-based inclusive.
type BlameSpan struct {
	Commit string
	Start  int
	End    int
}

// CommitMeta is the slice of commit metadata lore cares about.
type CommitMeta struct {
	Commit  string
	Author  string
	Time    time.Time
	Subject string
}

// Backend is the only sanctioned interface to the underlying version
// control system. Read distinguishes "no note" (nil, nil) from backend
// failure; Write is a single atomic note write.
type Backend interface {
	// Read returns the note payload for a commit, or (nil, nil) when the
	// commit has no note. Errors are COMMIT_NOT_FOUND for unresolvable
	// commits and BACKEND_UNAVAILABLE for git failures.
	Read(ctx context.Context, commit string) ([]byte, error)

	// Write stores a note payload for a commit in one atomic operation,
	// honoring opts.Mode and opts.ExpectedPriorSum.
	Write(ctx context.Context, commit string, payload []byte, opts WriteOptions) error

	// ListNoted returns every commit carrying a note on this backend's ref.
	ListNoted(ctx context.Context) ([]NotedCommit, error)

	// Blame attributes the file's lines to commits. start/end restrict the
	// blamed range (1-based inclusive); zero values blame the whole file.
	Blame(ctx context.Context, file string, start, end int) ([]BlameSpan, error)

	// LogForPath lists commits touching a path, newest first, following
	// renames.
	LogForPath(ctx context.Context, file string) ([]CommitMeta, error)

	// ResolveRef resolves a ref or abbreviated id to a full commit id.
	ResolveRef(ctx context.Context, name string) (string, error)

	// CommitInfo returns metadata for one commit.
	CommitInfo(ctx context.Context, commit string) (CommitMeta, error)

	// Head returns metadata for the current HEAD commit.
	Head(ctx context.Context) (CommitMeta, error)

	// Parents returns a commit's parent ids in order.
	Parents(ctx context.Context, commit string) ([]string, error)

	// ChangedFiles lists paths that differ between two commits.
	ChangedFiles(ctx context.Context, from, to string) ([]string, error)

	// ReadFileAt returns a file's content as of a commit.
	ReadFileAt(ctx context.Context, commit, path string) ([]byte, error)

	// UserIdentity returns the configured author as "Name <email>".
	UserIdentity(ctx context.Context) (string, error)

	// RefTip returns the commit id the notes ref points at, or "" when the
	// ref does not exist yet.
	RefTip(ctx context.Context) (string, error)

	// Push publishes the notes ref to the configured remote.
	Push(ctx context.Context) error

	// Fetch retrieves the notes ref from the configured remote. The
	// refspec is never forced: a fetch that cannot fast-forward the local
	// ref fails with SYNC_DIVERGED instead of overwriting local notes.
	Fetch(ctx context.Context) error
}

// PayloadSum returns the content hash used for optimistic-concurrency
// checks: a blake2b-128 digest of the stored bytes, hex encoded.
func PayloadSum(payload []byte) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only fails for invalid sizes; 16 is legal.
		panic(err)
	}
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
