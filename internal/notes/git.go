package notes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	lerrors "lore/internal/errors"
)

// DefaultTimeout bounds a single git invocation when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// GitOptions configures a GitBackend.
type GitOptions struct {
	// Binary is the git executable, "git" by default.
	Binary string
	// Ref is the notes ref this backend reads and writes.
	Ref string
	// Remote is the remote used by Push and Fetch.
	Remote string
	// Timeout bounds each git invocation.
	Timeout time.Duration
}

// GitBackend implements Backend by shelling out to git.
type GitBackend struct {
	repoRoot string
	binary   string
	ref      string
	remote   string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGitBackend creates a backend rooted at repoRoot. The ref must be a
// notes ref (refs/notes/...); callers construct one backend per ref.
func NewGitBackend(repoRoot string, opts GitOptions, logger *slog.Logger) *GitBackend {
	if opts.Binary == "" {
		opts.Binary = "git"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &GitBackend{
		repoRoot: repoRoot,
		binary:   opts.Binary,
		ref:      opts.Ref,
		remote:   opts.Remote,
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Ref returns the notes ref this backend operates on.
func (g *GitBackend) Ref() string {
	return g.ref
}

// RepoRoot returns the working directory git commands run in.
func (g *GitBackend) RepoRoot() string {
	return g.repoRoot
}

// Available reports whether git runs and the root is inside a repository.
func (g *GitBackend) Available(ctx context.Context) bool {
	_, err := g.run(ctx, nil, "rev-parse", "--git-dir")
	return err == nil
}

// GitDir returns the repository's .git directory.
func (g *GitBackend) GitDir(ctx context.Context) (string, error) {
	out, err := g.run(ctx, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// run executes one git command with a per-call timeout, stdin wired to
// input when non-nil, and stderr folded into the returned error.
func (g *GitBackend) run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = g.repoRoot
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	if g.logger != nil {
		g.logger.Debug("running git", "args", strings.Join(args, " "))
	}

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, lerrors.New(lerrors.BackendUnavailable,
				fmt.Sprintf("git %s timed out after %s", firstArg(args), g.timeout), err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, &gitError{
				args:   args,
				stderr: strings.TrimSpace(string(exitErr.Stderr)),
				cause:  err,
			}
		}
		return nil, lerrors.New(lerrors.BackendUnavailable,
			fmt.Sprintf("running %s: is git installed?", g.binary), err)
	}
	return out, nil
}

// gitError carries the command and stderr of a failed git invocation so
// callers can classify it before it is surfaced.
type gitError struct {
	args   []string
	stderr string
	cause  error
}

func (e *gitError) Error() string {
	return fmt.Sprintf("git %s failed: %v\n%s", strings.Join(e.args, " "), e.cause, e.stderr)
}

func (e *gitError) Unwrap() error {
	return e.cause
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// stderrContains reports whether err is a git failure whose stderr contains
// any of the given fragments (case-insensitive).
func stderrContains(err error, fragments ...string) bool {
	ge, ok := err.(*gitError)
	if !ok {
		return false
	}
	lower := strings.ToLower(ge.stderr)
	for _, f := range fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Read returns the note payload for a commit, (nil, nil) when none exists.
func (g *GitBackend) Read(ctx context.Context, commit string) ([]byte, error) {
	out, err := g.run(ctx, nil, "notes", "--ref", g.ref, "show", commit)
	if err != nil {
		switch {
		case stderrContains(err, "no note found"):
			return nil, nil
		case stderrContains(err, "failed to resolve", "bad revision", "unknown revision", "invalid object name"):
			return nil, lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("commit %s does not exist in this repository", commit), err)
		default:
			return nil, lerrors.New(lerrors.BackendUnavailable, "reading note", err)
		}
	}
	return out, nil
}

// Write stores a note for a commit. Create mode maps onto `git notes add`
// without -f, so the existence check and the write are one atomic git
// operation; the optional ExpectedPriorSum adds a read-check-write layer on
// top for callers that saw the prior bytes.
func (g *GitBackend) Write(ctx context.Context, commit string, payload []byte, opts WriteOptions) error {
	if opts.ExpectedPriorSum != "" {
		current, err := g.Read(ctx, commit)
		if err != nil {
			return err
		}
		if sum := PayloadSum(current); sum != opts.ExpectedPriorSum {
			return lerrors.New(lerrors.WriteConflict,
				fmt.Sprintf("note for %s changed since it was read", shortID(commit)), nil).
				WithDetails(lerrors.ConflictDetails{
					Commit:      commit,
					ExistingSum: sum,
					ExpectedSum: opts.ExpectedPriorSum,
				})
		}
	}

	args := []string{"notes", "--ref", g.ref, "add"}
	if opts.Mode == ModeForce {
		args = append(args, "-f")
	}
	args = append(args, "-F", "-", commit)

	if _, err := g.run(ctx, payload, args...); err != nil {
		switch {
		case stderrContains(err, "found existing notes"):
			return lerrors.New(lerrors.WriteConflict,
				fmt.Sprintf("an annotation already exists for %s", shortID(commit)), err).
				WithDetails(lerrors.ConflictDetails{Commit: commit})
		case stderrContains(err, "failed to resolve", "bad revision", "unknown revision", "invalid object name"):
			return lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("commit %s does not exist in this repository", commit), err)
		default:
			return lerrors.New(lerrors.BackendUnavailable, "writing note", err)
		}
	}
	return nil
}

// ListNoted returns every commit with a note on the ref. A missing ref is
// an empty corpus, not an error.
func (g *GitBackend) ListNoted(ctx context.Context) ([]NotedCommit, error) {
	out, err := g.run(ctx, nil, "notes", "--ref", g.ref, "list")
	if err != nil {
		if stderrContains(err, "failed to resolve", "invalid ref") {
			return nil, nil
		}
		return nil, lerrors.New(lerrors.BackendUnavailable, "listing notes", err)
	}

	var noted []NotedCommit
	for _, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		noted = append(noted, NotedCommit{NoteObject: fields[0], Commit: fields[1]})
	}
	return noted, nil
}

// Blame attributes lines of a file to commits using porcelain output.
func (g *GitBackend) Blame(ctx context.Context, file string, start, end int) ([]BlameSpan, error) {
	args := []string{"blame", "--porcelain"}
	if start > 0 {
		if end < start {
			end = start
		}
		args = append(args, "-L", fmt.Sprintf("%d,%d", start, end))
	}
	args = append(args, "--", file)

	out, err := g.run(ctx, nil, args...)
	if err != nil {
		if stderrContains(err, "no such path", "has only") {
			return nil, lerrors.New(lerrors.ScopeInvalid,
				fmt.Sprintf("cannot blame %s: path or line range not found", file), err)
		}
		return nil, lerrors.New(lerrors.BackendUnavailable, "running blame", err)
	}
	return parseBlameSpans(out), nil
}

const logFormat = "%H|%aI|%an|%s"

// LogForPath lists commits touching the file, newest first.
func (g *GitBackend) LogForPath(ctx context.Context, file string) ([]CommitMeta, error) {
	out, err := g.run(ctx, nil, "log", "--follow", "--format="+logFormat, "--", file)
	if err != nil {
		return nil, lerrors.New(lerrors.BackendUnavailable, "listing path history", err)
	}

	var commits []CommitMeta
	for _, line := range splitLines(out) {
		meta, ok := parseLogLine(line)
		if !ok {
			continue
		}
		commits = append(commits, meta)
	}
	return commits, nil
}

// ResolveRef resolves any committish to a full commit id.
func (g *GitBackend) ResolveRef(ctx context.Context, name string) (string, error) {
	out, err := g.run(ctx, nil, "rev-parse", "--verify", name+"^{commit}")
	if err != nil {
		if stderrContains(err, "needed a single revision", "unknown revision", "bad revision", "fatal") {
			return "", lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("%q does not resolve to a commit", name), err)
		}
		return "", lerrors.New(lerrors.BackendUnavailable, "resolving ref", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CommitInfo returns one commit's metadata.
func (g *GitBackend) CommitInfo(ctx context.Context, commit string) (CommitMeta, error) {
	out, err := g.run(ctx, nil, "log", "-1", "--format="+logFormat, commit, "--")
	if err != nil {
		if stderrContains(err, "unknown revision", "bad revision", "invalid object name") {
			return CommitMeta{}, lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("commit %s does not exist in this repository", commit), err)
		}
		return CommitMeta{}, lerrors.New(lerrors.BackendUnavailable, "reading commit metadata", err)
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return CommitMeta{}, lerrors.New(lerrors.CommitNotFound,
			fmt.Sprintf("commit %s produced no log output", commit), nil)
	}
	meta, ok := parseLogLine(lines[0])
	if !ok {
		return CommitMeta{}, lerrors.New(lerrors.BackendUnavailable,
			fmt.Sprintf("unparseable log line %q", lines[0]), nil)
	}
	return meta, nil
}

// Head returns metadata for the current HEAD commit.
func (g *GitBackend) Head(ctx context.Context) (CommitMeta, error) {
	return g.CommitInfo(ctx, "HEAD")
}

// Parents returns a commit's parents in order; empty for root commits.
func (g *GitBackend) Parents(ctx context.Context, commit string) ([]string, error) {
	out, err := g.run(ctx, nil, "rev-parse", commit+"^@")
	if err != nil {
		if stderrContains(err, "unknown revision", "bad revision", "invalid object name") {
			return nil, lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("commit %s does not exist in this repository", commit), err)
		}
		return nil, lerrors.New(lerrors.BackendUnavailable, "listing parents", err)
	}
	return splitLines(out), nil
}

// ChangedFiles lists paths differing between two commits.
func (g *GitBackend) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	out, err := g.run(ctx, nil, "diff", "--name-only", from, to)
	if err != nil {
		return nil, lerrors.New(lerrors.BackendUnavailable, "diffing commits", err)
	}
	return splitLines(out), nil
}

// ReadFileAt returns a file's bytes as of a commit.
func (g *GitBackend) ReadFileAt(ctx context.Context, commit, path string) ([]byte, error) {
	out, err := g.run(ctx, nil, "show", commit+":"+path)
	if err != nil {
		if stderrContains(err, "does not exist", "exists on disk, but not in", "invalid object name", "bad revision") {
			return nil, lerrors.New(lerrors.CommitNotFound,
				fmt.Sprintf("%s not found at %s", path, shortID(commit)), err)
		}
		return nil, lerrors.New(lerrors.BackendUnavailable, "reading file at commit", err)
	}
	return out, nil
}

// UserIdentity returns the configured author as "Name <email>".
func (g *GitBackend) UserIdentity(ctx context.Context) (string, error) {
	out, err := g.run(ctx, nil, "var", "GIT_AUTHOR_IDENT")
	if err != nil {
		return "", lerrors.New(lerrors.BackendUnavailable, "resolving git author identity", err)
	}
	ident := strings.TrimSpace(string(out))
	// "Name <email> 1712345678 +0200" -> "Name <email>"
	if i := strings.LastIndexByte(ident, '>'); i >= 0 {
		ident = ident[:i+1]
	}
	return ident, nil
}

// RefTip returns the commit the notes ref points at, "" when absent.
func (g *GitBackend) RefTip(ctx context.Context) (string, error) {
	out, err := g.run(ctx, nil, "rev-parse", "--verify", "--quiet", g.ref)
	if err != nil {
		if ge, ok := err.(*gitError); ok && ge.stderr == "" {
			// --quiet exits 1 with no output when the ref is absent.
			return "", nil
		}
		return "", lerrors.New(lerrors.BackendUnavailable, "resolving notes ref", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Push publishes the notes ref. The refspec carries no force prefix; a
// rejected push means the remote has notes this clone has not fetched.
func (g *GitBackend) Push(ctx context.Context) error {
	refspec := g.ref + ":" + g.ref
	if _, err := g.run(ctx, nil, "push", g.remote, refspec); err != nil {
		if stderrContains(err, "rejected", "non-fast-forward", "fetch first") {
			return lerrors.New(lerrors.SyncDiverged,
				fmt.Sprintf("remote %s has notes not present locally; fetch before pushing", g.remote), err)
		}
		return lerrors.New(lerrors.BackendUnavailable, "pushing notes ref", err)
	}
	return nil
}

// Fetch retrieves the notes ref. The refspec is deliberately unforced: git
// refuses a non-fast-forward update of the local ref rather than discarding
// unpushed local notes, and that refusal surfaces as SYNC_DIVERGED.
func (g *GitBackend) Fetch(ctx context.Context) error {
	refspec := g.ref + ":" + g.ref
	if _, err := g.run(ctx, nil, "fetch", g.remote, refspec); err != nil {
		if stderrContains(err, "rejected", "non-fast-forward") {
			return lerrors.New(lerrors.SyncDiverged,
				"local and remote notes have diverged; resolve manually before syncing", err)
		}
		return lerrors.New(lerrors.BackendUnavailable, "fetching notes ref", err)
	}
	return nil
}

// splitLines breaks command output into trimmed, non-empty lines.
func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// parseLogLine parses one "%H|%aI|%an|%s" line.
func parseLogLine(line string) (CommitMeta, bool) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) < 4 {
		return CommitMeta{}, false
	}
	ts, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return CommitMeta{}, false
	}
	return CommitMeta{
		Commit:  parts[0],
		Time:    ts,
		Author:  parts[2],
		Subject: parts[3],
	}, true
}

// shortID abbreviates a commit id for messages.
func shortID(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
