// Package rewrite carries annotations across history rewrites. When an
// amend, squash, or merge replaces annotated commits, it synthesizes a new
// annotation for the rewritten commit from the originals instead of letting
// the knowledge orphan silently. The rewrite kind is always supplied from
// outside (hook flag or pending-operation file); commit graphs are
// ambiguous and the core never guesses.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"

	"lore/internal/annotate"
	lerrors "lore/internal/errors"
	"lore/internal/notes"
	"lore/internal/schema"
)

// Kind names the history operation that replaced the source commits.
type Kind string

const (
	KindAmend  Kind = "amend"
	KindSquash Kind = "squash"
	KindMerge  Kind = "merge"
)

// ParseKind validates an externally supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAmend, KindSquash, KindMerge:
		return Kind(s), nil
	default:
		return "", lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("unknown rewrite kind %q; expected amend, squash, or merge", s), nil)
	}
}

// Result reports one synthesis. Receipt is nil when there was nothing to
// carry over: no source had an annotation, or a merge had no hand-resolved
// hunks. A skip is a normal outcome, not an error.
type Result struct {
	Kind             Kind              `json:"kind"`
	Target           string            `json:"target"`
	Sources          []string          `json:"sources,omitempty"`
	SourcesAnnotated int               `json:"sourcesAnnotated"`
	ConflictFiles    []string          `json:"conflictFiles,omitempty"`
	Receipt          *annotate.Receipt `json:"receipt,omitempty"`
}

// Synthesizer builds replacement annotations and persists them through the
// ordinary write pipeline.
type Synthesizer struct {
	backend  notes.Backend
	pipeline *annotate.Pipeline
	logger   *slog.Logger
}

// New creates a synthesizer over the given backend and write pipeline.
func New(backend notes.Backend, pipeline *annotate.Pipeline, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{backend: backend, pipeline: pipeline, logger: logger}
}

// Synthesize builds and writes the annotation for target based on kind.
// Writes go through force mode: the target may already carry a note from a
// racing hook, and the synthesized record is the more complete one.
func (s *Synthesizer) Synthesize(ctx context.Context, kind Kind, sources []string, target string) (*Result, error) {
	if target == "" {
		return nil, lerrors.New(lerrors.ValidationFailed, "rewrite synthesis needs a target commit", nil)
	}

	switch kind {
	case KindAmend:
		if len(sources) != 1 {
			return nil, lerrors.New(lerrors.ValidationFailed,
				fmt.Sprintf("amend synthesis takes exactly one source commit, got %d", len(sources)), nil)
		}
		return s.amend(ctx, sources[0], target)
	case KindSquash:
		if len(sources) == 0 {
			return nil, lerrors.New(lerrors.ValidationFailed,
				"squash synthesis needs the squashed source commits", nil)
		}
		return s.squash(ctx, sources, target)
	case KindMerge:
		if len(sources) > 0 {
			return nil, lerrors.New(lerrors.ValidationFailed,
				"merge synthesis derives its sources from the merge parents; do not pass --source", nil)
		}
		return s.merge(ctx, target)
	default:
		_, err := ParseKind(string(kind))
		return nil, err
	}
}

// sourceAnnotation reads and migrates one source commit's record. Missing
// notes and unreachable commits both come back nil; a rewrite must tolerate
// sources that history has already garbage-collected.
func (s *Synthesizer) sourceAnnotation(ctx context.Context, commit string) *schema.Annotation {
	payload, err := s.backend.Read(ctx, commit)
	if err != nil || payload == nil {
		if err != nil {
			s.logger.Debug("rewrite source unreadable", "commit", shortID(commit), "error", err)
		}
		return nil
	}
	record, _, err := schema.Parse(payload)
	if err != nil {
		s.logger.Warn("rewrite source annotation malformed, skipping", "commit", shortID(commit), "error", err)
		return nil
	}
	return record.CurrentView()
}

func shortID(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
