// Package notestest provides an in-memory notes.Backend for tests that
// exercise the write and read pipelines without a real repository.
package notestest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lerrors "lore/internal/errors"
	"lore/internal/notes"
)

// Fake is an in-memory Backend. Configure it with the Add and Set helpers,
// then hand it to the code under test. All methods are safe for concurrent
// use, so conflict behavior under parallel writers can be tested directly.
type Fake struct {
	mu sync.Mutex

	commits   map[string]notes.CommitMeta
	order     []string
	notes     map[string][]byte
	blames    map[string][]notes.BlameSpan
	pathLogs  map[string][]notes.CommitMeta
	filesAt   map[string][]byte
	parents   map[string][]string
	changed   map[string][]string
	head      string
	identity  string
	revision  int
	PushErr   error
	FetchErr  error
	Pushed    int
	Fetched   int
	WriteErr  error
	ReadCalls int
}

// NewFake returns an empty fake with a default identity.
func NewFake() *Fake {
	return &Fake{
		commits:  make(map[string]notes.CommitMeta),
		notes:    make(map[string][]byte),
		blames:   make(map[string][]notes.BlameSpan),
		pathLogs: make(map[string][]notes.CommitMeta),
		filesAt:  make(map[string][]byte),
		parents:  make(map[string][]string),
		changed:  make(map[string][]string),
		identity: "Test Author <test@example.com>",
	}
}

// AddCommit registers a commit; the newest added commit becomes HEAD.
func (f *Fake) AddCommit(commit, author, subject string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.commits[commit]; !exists {
		f.order = append(f.order, commit)
	}
	f.commits[commit] = notes.CommitMeta{Commit: commit, Author: author, Time: at, Subject: subject}
	f.head = commit
}

// SetHead overrides which commit HEAD resolves to.
func (f *Fake) SetHead(commit string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = commit
}

// SetIdentity overrides the configured author identity.
func (f *Fake) SetIdentity(ident string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = ident
}

// SetBlame installs the whole-file blame spans for a path.
func (f *Fake) SetBlame(file string, spans ...notes.BlameSpan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blames[file] = spans
}

// SetPathLog installs the commit history for a path, newest first.
func (f *Fake) SetPathLog(file string, metas ...notes.CommitMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathLogs[file] = metas
}

// SetFileAt installs a file's contents as of a commit.
func (f *Fake) SetFileAt(commit, path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filesAt[commit+":"+path] = content
}

// SetParents installs a commit's parent list.
func (f *Fake) SetParents(commit string, parents ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parents[commit] = parents
}

// SetChanged installs the changed-file list for a commit pair.
func (f *Fake) SetChanged(from, to string, files ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed[from+".."+to] = files
}

// SetNote seeds a note without going through Write.
func (f *Fake) SetNote(commit string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[commit] = append([]byte(nil), payload...)
	f.revision++
}

// Note returns the raw stored payload, nil when absent.
func (f *Fake) Note(commit string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.notes[commit]; ok {
		return append([]byte(nil), p...)
	}
	return nil
}

func (f *Fake) Read(ctx context.Context, commit string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadCalls++
	if _, ok := f.commits[commit]; !ok {
		return nil, lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("commit %s does not exist in this repository", commit), nil)
	}
	payload, ok := f.notes[commit]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

func (f *Fake) Write(ctx context.Context, commit string, payload []byte, opts notes.WriteOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if _, ok := f.commits[commit]; !ok {
		return lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("commit %s does not exist in this repository", commit), nil)
	}
	existing, exists := f.notes[commit]
	if opts.ExpectedPriorSum != "" {
		if sum := notes.PayloadSum(existing); sum != opts.ExpectedPriorSum {
			return lerrors.New(lerrors.WriteConflict,
				fmt.Sprintf("note for %s changed since it was read", commit), nil).
				WithDetails(lerrors.ConflictDetails{
					Commit:      commit,
					ExistingSum: sum,
					ExpectedSum: opts.ExpectedPriorSum,
				})
		}
	}
	if exists && opts.Mode != notes.ModeForce {
		return lerrors.New(lerrors.WriteConflict,
			fmt.Sprintf("an annotation already exists for %s", commit), nil).
			WithDetails(lerrors.ConflictDetails{Commit: commit})
	}
	f.notes[commit] = append([]byte(nil), payload...)
	f.revision++
	return nil
}

func (f *Fake) ListNoted(ctx context.Context) ([]notes.NotedCommit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := make([]string, 0, len(f.notes))
	for c := range f.notes {
		commits = append(commits, c)
	}
	sort.Strings(commits)
	noted := make([]notes.NotedCommit, 0, len(commits))
	for _, c := range commits {
		noted = append(noted, notes.NotedCommit{
			Commit:     c,
			NoteObject: notes.PayloadSum(f.notes[c]),
		})
	}
	return noted, nil
}

func (f *Fake) Blame(ctx context.Context, file string, start, end int) ([]notes.BlameSpan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spans, ok := f.blames[file]
	if !ok {
		return nil, lerrors.New(lerrors.ScopeInvalid,
			fmt.Sprintf("cannot blame %s: path or line range not found", file), nil)
	}
	if start <= 0 {
		return append([]notes.BlameSpan(nil), spans...), nil
	}
	var clipped []notes.BlameSpan
	for _, s := range spans {
		if s.End < start || s.Start > end {
			continue
		}
		c := s
		if c.Start < start {
			c.Start = start
		}
		if c.End > end {
			c.End = end
		}
		clipped = append(clipped, c)
	}
	return clipped, nil
}

func (f *Fake) LogForPath(ctx context.Context, file string) ([]notes.CommitMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notes.CommitMeta(nil), f.pathLogs[file]...), nil
}

func (f *Fake) ResolveRef(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "HEAD" {
		if f.head == "" {
			return "", lerrors.New(lerrors.CommitNotFound, "repository has no commits", nil)
		}
		return f.head, nil
	}
	if _, ok := f.commits[name]; ok {
		return name, nil
	}
	// Abbreviated ids resolve when unambiguous.
	var match string
	for c := range f.commits {
		if len(name) >= 4 && len(c) >= len(name) && c[:len(name)] == name {
			if match != "" {
				return "", lerrors.New(lerrors.CommitNotFound,
					fmt.Sprintf("%q is ambiguous", name), nil)
			}
			match = c
		}
	}
	if match == "" {
		return "", lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("%q does not resolve to a commit", name), nil)
	}
	return match, nil
}

func (f *Fake) CommitInfo(ctx context.Context, commit string) (notes.CommitMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.commits[commit]
	if !ok {
		return notes.CommitMeta{}, lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("commit %s does not exist in this repository", commit), nil)
	}
	return meta, nil
}

func (f *Fake) Head(ctx context.Context) (notes.CommitMeta, error) {
	f.mu.Lock()
	head := f.head
	f.mu.Unlock()
	if head == "" {
		return notes.CommitMeta{}, lerrors.New(lerrors.CommitNotFound, "repository has no commits", nil)
	}
	return f.CommitInfo(ctx, head)
}

func (f *Fake) Parents(ctx context.Context, commit string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.commits[commit]; !ok {
		return nil, lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("commit %s does not exist in this repository", commit), nil)
	}
	return append([]string(nil), f.parents[commit]...), nil
}

func (f *Fake) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.changed[from+".."+to]...), nil
}

func (f *Fake) ReadFileAt(ctx context.Context, commit, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.filesAt[commit+":"+path]
	if !ok {
		return nil, lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("%s not found at %s", path, commit), nil)
	}
	return append([]byte(nil), content...), nil
}

func (f *Fake) UserIdentity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity, nil
}

func (f *Fake) RefTip(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revision == 0 {
		return "", nil
	}
	return fmt.Sprintf("tip-%06d", f.revision), nil
}

func (f *Fake) Push(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PushErr != nil {
		return f.PushErr
	}
	f.Pushed++
	return nil
}

func (f *Fake) Fetch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return f.FetchErr
	}
	f.Fetched++
	return nil
}

var _ notes.Backend = (*Fake)(nil)
