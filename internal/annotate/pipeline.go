// Package annotate implements the write pipeline: validate the incoming
// annotation, stamp provenance, check for an existing record, and persist
// through the notes backend as one atomic note write.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/identity"
	"lore/internal/notes"
	"lore/internal/schema"
)

// Options selects the write path and conflict behavior for one write.
type Options struct {
	// WritePath records how this annotation was produced; empty means live.
	WritePath schema.WritePath
	// Force replaces an existing annotation instead of refusing. Normal
	// writes leave this false; rewrite synthesis sets it because the target
	// commit may already carry a note from a racing hook.
	Force bool
	// Author overrides identity resolution when non-empty.
	Author string
	// SourceCommits lists the commits a synthesized annotation was derived
	// from. They stay listed even after the originals become unreachable.
	SourceCommits []string
	// SynthesisNotes carries free-text provenance from the synthesis path.
	SynthesisNotes string
}

// Receipt reports a completed write. Warnings are advisory quality signals;
// they never block the write.
type Receipt struct {
	Commit    string             `json:"commit"`
	Schema    string             `json:"schema"`
	Bytes     int                `json:"bytes"`
	Author    string             `json:"author,omitempty"`
	WritePath schema.WritePath   `json:"writePath"`
	Forced    bool               `json:"forced,omitempty"`
	Warnings  []envelope.Warning `json:"warnings,omitempty"`
}

// Pipeline is the write pipeline. One Pipeline serves any number of writes.
type Pipeline struct {
	backend notes.Backend
	authors *identity.Resolver
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a write pipeline. authors may be nil when no alias map is
// configured; provenance then carries the raw git identity.
func New(backend notes.Backend, authors *identity.Resolver, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		backend: backend,
		authors: authors,
		logger:  logger,
		now:     time.Now,
	}
}

// Write validates, stamps, conflict-checks, and persists one annotation for
// the given (already resolved) commit id.
func (p *Pipeline) Write(ctx context.Context, commit string, in Input, opts Options) (*Receipt, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ann := p.stamp(ctx, commit, in, opts)

	existing, err := p.backend.Read(ctx, commit)
	if err != nil {
		return nil, err
	}
	if existing != nil && !opts.Force {
		details := lerrors.ConflictDetails{Commit: commit}
		if prior, _, perr := schema.Parse(existing); perr == nil {
			details.WrittenAt = prior.CreatedAt.UTC().Format(time.RFC3339)
		}
		return nil, lerrors.New(lerrors.WriteConflict,
			fmt.Sprintf("an annotation already exists for %s", shortID(commit)), nil).
			WithDetails(details)
	}

	payload, err := schema.Serialize(ann)
	if err != nil {
		return nil, err
	}

	wopts := notes.WriteOptions{Mode: notes.ModeCreate}
	if opts.Force && existing != nil {
		// Replace exactly the bytes seen above; a racing writer surfaces as
		// a conflict instead of being silently clobbered.
		wopts.Mode = notes.ModeForce
		wopts.ExpectedPriorSum = notes.PayloadSum(existing)
	}
	if err := p.backend.Write(ctx, commit, payload, wopts); err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Commit:    commit,
		Schema:    ann.Schema,
		Bytes:     len(payload),
		Author:    ann.Provenance.Author,
		WritePath: ann.Provenance.WritePath,
		Forced:    opts.Force && existing != nil,
		Warnings:  p.qualityWarnings(ctx, commit, in),
	}
	p.logger.Info("annotation written",
		"commit", shortID(commit),
		"writePath", receipt.WritePath,
		"bytes", receipt.Bytes,
		"warnings", len(receipt.Warnings))
	return receipt, nil
}

// Correct appends an additive correction to an existing annotation. This is
// the only sanctioned in-place note rewrite: the stored bytes grow by one
// appended document and the original record is byte-for-byte unchanged.
func (p *Pipeline) Correct(ctx context.Context, commit string, c schema.Correction) (*Receipt, error) {
	if err := validateCorrection(c); err != nil {
		return nil, err
	}

	payload, err := p.backend.Read(ctx, commit)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, lerrors.New(lerrors.AnnotationNotFound,
			fmt.Sprintf("no annotation exists for %s; corrections amend existing records", shortID(commit)), nil)
	}

	if c.Author == "" {
		c.Author = p.resolveAuthor(ctx)
	}
	if c.CorrectedAt.IsZero() {
		c.CorrectedAt = p.now().UTC()
	}

	amended, err := schema.AppendCorrection(payload, c)
	if err != nil {
		return nil, err
	}

	err = p.backend.Write(ctx, commit, amended, notes.WriteOptions{
		Mode:             notes.ModeForce,
		ExpectedPriorSum: notes.PayloadSum(payload),
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("correction recorded", "commit", shortID(commit), "field", c.Field)
	return &Receipt{
		Commit:    commit,
		Schema:    schema.CurrentTag,
		Bytes:     len(amended),
		Author:    c.Author,
		WritePath: schema.WritePath("correction"),
	}, nil
}

// stamp builds the canonical record: normalized content plus the
// provenance this pipeline is responsible for.
func (p *Pipeline) stamp(ctx context.Context, commit string, in Input, opts Options) *schema.Annotation {
	writePath := opts.WritePath
	if writePath == "" {
		writePath = schema.WritePathLive
	}
	author := opts.Author
	if author == "" {
		author = p.resolveAuthor(ctx)
	}

	markers := append([]schema.Marker(nil), in.Markers...)
	for i := range markers {
		if markers[i].Kind == schema.MarkerContract && markers[i].Basis == "" {
			markers[i].Basis = schema.BasisStated
		}
	}
	decisions := append([]schema.Decision(nil), in.Decisions...)
	for i := range decisions {
		if decisions[i].Stability == "" {
			decisions[i].Stability = schema.StabilityProvisional
		}
	}

	return &schema.Annotation{
		Schema:    schema.CurrentTag,
		Commit:    commit,
		CreatedAt: p.now().UTC(),
		Narrative: in.Narrative,
		Markers:   markers,
		Decisions: decisions,
		Effort:    in.Effort,
		Provenance: schema.Provenance{
			WritePath:     writePath,
			Author:        author,
			SourceCommits: append([]string(nil), opts.SourceCommits...),
			Notes:         opts.SynthesisNotes,
		},
	}
}

// resolveAuthor returns the canonical author identity, or empty when the
// repository has none configured. Unresolvable identity is not an error;
// provenance simply goes without an author.
func (p *Pipeline) resolveAuthor(ctx context.Context) string {
	if p.authors != nil {
		author, err := p.authors.Resolve(ctx)
		if err == nil {
			return author
		}
		p.logger.Debug("author identity unresolved", "error", err)
		return ""
	}
	author, err := p.backend.UserIdentity(ctx)
	if err != nil {
		p.logger.Debug("author identity unresolved", "error", err)
		return ""
	}
	return author
}

func shortID(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
