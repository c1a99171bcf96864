// Package knowledge stores repo-wide facts that are not scoped to a single
// commit: conventions, module boundaries, and anti-patterns. Entries live in
// one versioned JSON document on a dedicated notes ref, anchored to the
// empty tree object so the store needs no carrier commit.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	lerrors "lore/internal/errors"
	"lore/internal/notes"
)

// SchemaTag versions the stored document independently of the annotation
// schema; the two evolve on their own clocks.
const SchemaTag = "lore-knowledge/v1"

// AnchorObject is the id of the empty tree, an object every git repository
// contains without any commit having to exist. The whole store is one note
// attached to it.
const AnchorObject = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Kind discriminates the three entry shapes.
type Kind string

const (
	// KindConvention is a scoped rule the team follows.
	KindConvention Kind = "convention"
	// KindBoundary records what a module owns and where its edge is.
	KindBoundary Kind = "boundary"
	// KindAntiPattern names a pattern to avoid and what to do instead.
	KindAntiPattern Kind = "anti_pattern"
)

// Entry is one repo-wide fact. Only the fields of its Kind are set.
type Entry struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// convention
	Rule      string   `json:"rule,omitempty"`
	Scope     []string `json:"scope,omitempty"`
	Stability string   `json:"stability,omitempty"`

	// boundary
	Module   string   `json:"module,omitempty"`
	Owns     []string `json:"owns,omitempty"`
	Boundary string   `json:"boundary,omitempty"`

	// anti_pattern
	Pattern string `json:"pattern,omitempty"`
	Instead string `json:"instead,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	Author    string    `json:"author,omitempty"`
}

// document is the stored shape: a schema tag plus entries keyed by id.
type document struct {
	Schema  string           `json:"schema"`
	Entries map[string]Entry `json:"entries"`
}

// Store reads and writes the knowledge document. It holds no state between
// calls; every operation loads, mutates, and writes back under the
// prior-sum conflict check.
type Store struct {
	backend notes.Backend
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewStore binds a store to a backend. The backend must be constructed on
// the knowledge ref, not the annotation ref.
func NewStore(backend notes.Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   shortUUID,
	}
}

// shortUUID returns the first 8 hex characters of a fresh uuid. Eight
// characters is plenty for a store sized in dozens of entries, and short
// ids keep `knowledge remove` typeable.
func shortUUID() string {
	return uuid.NewString()[:8]
}

// Add validates the entry, assigns it an id and timestamp, and persists it.
func (s *Store) Add(ctx context.Context, e Entry) (Entry, error) {
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}

	doc, prior, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}

	e.ID = s.newID()
	for doc.Entries[e.ID].ID != "" {
		e.ID = s.newID()
	}
	e.CreatedAt = s.now().UTC()
	if e.Author == "" {
		if ident, err := s.backend.UserIdentity(ctx); err == nil {
			e.Author = ident
		}
	}

	doc.Entries[e.ID] = e
	if err := s.save(ctx, doc, prior); err != nil {
		return Entry{}, err
	}
	s.logger.Info("knowledge entry added", "id", e.ID, "kind", e.Kind)
	return e, nil
}

// List returns all entries, conventions first, then boundaries, then
// anti-patterns, newest first within a kind.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return kindRank(entries[i].Kind) < kindRank(entries[j].Kind)
		}
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Entries[id]
	if !ok {
		return Entry{}, lerrors.New(lerrors.KnowledgeNotFound,
			fmt.Sprintf("no knowledge entry with id %q", id), nil)
	}
	return e, nil
}

// Remove deletes an entry by id and returns what was removed.
func (s *Store) Remove(ctx context.Context, id string) (Entry, error) {
	doc, prior, err := s.load(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, ok := doc.Entries[id]
	if !ok {
		return Entry{}, lerrors.New(lerrors.KnowledgeNotFound,
			fmt.Sprintf("no knowledge entry with id %q", id), nil)
	}
	delete(doc.Entries, id)
	if err := s.save(ctx, doc, prior); err != nil {
		return Entry{}, err
	}
	s.logger.Info("knowledge entry removed", "id", id, "kind", e.Kind)
	return e, nil
}

// ForPath returns the entries whose declared scope covers the file. Entries
// without a scope are repo-wide and always match; boundaries match through
// their owns globs.
func (s *Store) ForPath(ctx context.Context, file string) ([]Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Entry
	for _, e := range entries {
		if entryCovers(e, file) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func entryCovers(e Entry, file string) bool {
	globs := e.Scope
	if e.Kind == KindBoundary {
		globs = e.Owns
	}
	if len(globs) == 0 {
		return e.Kind != KindBoundary
	}
	for _, g := range globs {
		if scopeMatches(g, file) {
			return true
		}
	}
	return false
}

// scopeMatches treats a scope as a path glob, with a bare directory
// matching everything under it.
func scopeMatches(glob, file string) bool {
	if ok, err := path.Match(glob, file); err == nil && ok {
		return true
	}
	dir := strings.TrimSuffix(strings.TrimSuffix(glob, "**"), "/")
	if dir == "" {
		return strings.HasSuffix(glob, "**")
	}
	return file == dir || strings.HasPrefix(file, dir+"/")
}

func kindRank(k Kind) int {
	switch k {
	case KindConvention:
		return 0
	case KindBoundary:
		return 1
	default:
		return 2
	}
}

// load reads and parses the stored document, returning the raw prior bytes
// for the conflict check on the following save. An absent note is an empty
// store, not an error.
func (s *Store) load(ctx context.Context) (*document, []byte, error) {
	payload, err := s.backend.Read(ctx, AnchorObject)
	if err != nil {
		return nil, nil, err
	}
	if payload == nil {
		return &document{Schema: SchemaTag, Entries: map[string]Entry{}}, nil, nil
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, nil, lerrors.New(lerrors.MalformedPayload,
			"knowledge store payload is not valid JSON", err)
	}
	if doc.Schema != SchemaTag {
		return nil, nil, lerrors.New(lerrors.UnknownSchemaVersion,
			fmt.Sprintf("knowledge store declares schema %q; this build reads %s", doc.Schema, SchemaTag), nil)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]Entry{}
	}
	return &doc, payload, nil
}

// save writes the document back, pinned to the bytes load returned so a
// racing writer surfaces as a conflict.
func (s *Store) save(ctx context.Context, doc *document, prior []byte) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return lerrors.New(lerrors.InternalError, "encoding knowledge store", err)
	}

	opts := notes.WriteOptions{Mode: notes.ModeForce}
	if prior != nil {
		opts.ExpectedPriorSum = notes.PayloadSum(prior)
	}
	return s.backend.Write(ctx, AnchorObject, payload, opts)
}

// validateEntry enforces the per-kind required fields.
func validateEntry(e Entry) error {
	errs := validation.Errors{}

	switch e.Kind {
	case KindConvention:
		if err := validation.Validate(e.Rule, validation.Required.Error("cannot be blank")); err != nil {
			errs["rule"] = err
		}
		if e.Stability != "" {
			if err := validation.Validate(e.Stability,
				validation.In("permanent", "provisional", "experimental").
					Error("must be permanent, provisional, or experimental")); err != nil {
				errs["stability"] = err
			}
		}
	case KindBoundary:
		if err := validation.Validate(e.Module, validation.Required.Error("cannot be blank")); err != nil {
			errs["module"] = err
		}
		if len(e.Owns) == 0 && e.Boundary == "" {
			errs["owns"] = validation.NewError("validation_boundary_empty",
				"a boundary must declare owned paths or boundary text")
		}
	case KindAntiPattern:
		if err := validation.Validate(e.Pattern, validation.Required.Error("cannot be blank")); err != nil {
			errs["pattern"] = err
		}
		if err := validation.Validate(e.Instead, validation.Required.Error("cannot be blank")); err != nil {
			errs["instead"] = err
		}
	default:
		errs["kind"] = validation.NewError("validation_kind",
			"must be convention, boundary, or anti_pattern")
	}

	if len(errs) > 0 {
		return lerrors.New(lerrors.ValidationFailed,
			"knowledge entry is invalid: "+errs.Error(), nil).WithDetails(errs)
	}
	return nil
}
