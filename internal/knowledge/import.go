package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	lerrors "lore/internal/errors"
)

// seedFile is the on-disk shape teams keep in review: a flat entry list.
// Field names match the stored JSON so one documentation page covers both.
type seedFile struct {
	Entries []seedEntry `yaml:"entries" toml:"entries"`
}

type seedEntry struct {
	Kind      string   `yaml:"kind" toml:"kind"`
	Rule      string   `yaml:"rule" toml:"rule"`
	Scope     []string `yaml:"scope" toml:"scope"`
	Stability string   `yaml:"stability" toml:"stability"`
	Module    string   `yaml:"module" toml:"module"`
	Owns      []string `yaml:"owns" toml:"owns"`
	Boundary  string   `yaml:"boundary" toml:"boundary"`
	Pattern   string   `yaml:"pattern" toml:"pattern"`
	Instead   string   `yaml:"instead" toml:"instead"`
}

// ImportStats reports what an import did.
type ImportStats struct {
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Reasons  []string `json:"reasons,omitempty"`
	Source   string   `json:"source"`
}

// Import seeds the store from a team file in one write. Each entry is
// validated exactly like an Add; invalid entries are counted and skipped so
// one bad stanza does not abort the seeding, and nothing is written when
// every entry is rejected.
func (s *Store) Import(ctx context.Context, file string) (*ImportStats, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("cannot read seed file %s", file), err)
	}

	var seed seedFile
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, lerrors.New(lerrors.ValidationFailed,
				fmt.Sprintf("%s is not a valid YAML seed file", file), err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &seed); err != nil {
			return nil, lerrors.New(lerrors.ValidationFailed,
				fmt.Sprintf("%s is not a valid TOML seed file", file), err)
		}
	default:
		return nil, lerrors.New(lerrors.ValidationFailed,
			fmt.Sprintf("unsupported seed file extension %q; use .yaml, .yml, or .toml", ext), nil)
	}

	doc, prior, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	author := ""
	if ident, err := s.backend.UserIdentity(ctx); err == nil {
		author = ident
	}

	stats := &ImportStats{Source: file}
	for i, se := range seed.Entries {
		entry := Entry{
			Kind:      Kind(se.Kind),
			Rule:      se.Rule,
			Scope:     se.Scope,
			Stability: se.Stability,
			Module:    se.Module,
			Owns:      se.Owns,
			Boundary:  se.Boundary,
			Pattern:   se.Pattern,
			Instead:   se.Instead,
		}
		if err := validateEntry(entry); err != nil {
			stats.Rejected++
			stats.Reasons = append(stats.Reasons, fmt.Sprintf("entry %d: %v", i, err))
			s.logger.Warn("seed entry rejected", "index", i, "error", err)
			continue
		}
		entry.ID = s.newID()
		for doc.Entries[entry.ID].ID != "" {
			entry.ID = s.newID()
		}
		entry.CreatedAt = s.now().UTC()
		entry.Author = author
		doc.Entries[entry.ID] = entry
		stats.Imported++
	}

	if stats.Imported == 0 {
		return stats, nil
	}
	if err := s.save(ctx, doc, prior); err != nil {
		return nil, err
	}
	s.logger.Info("knowledge seeded", "source", file,
		"imported", stats.Imported, "rejected", stats.Rejected)
	return stats, nil
}
