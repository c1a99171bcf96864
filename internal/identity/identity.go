// Package identity resolves the author string stamped into annotation
// provenance and corrections.
//
// The raw identity comes from the repository's git configuration. Teams
// whose members commit under several addresses can map them onto one
// canonical identity with an alias table in .lore/authors.toml:
//
//	[aliases]
//	"dana@corp.example" = "Dana Váradi <dana@example.com>"
//	"d.varadi@oldcorp.example" = "Dana Váradi <dana@example.com>"
//
// Keys are email addresses, values the canonical "Name <email>" form.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	lerrors "lore/internal/errors"
)

// Source yields the repository's configured author identity.
type Source interface {
	UserIdentity(ctx context.Context) (string, error)
}

// Resolver maps raw git identities onto canonical author strings.
type Resolver struct {
	source  Source
	aliases map[string]string
	logger  *slog.Logger
}

type authorsFile struct {
	Aliases map[string]string `toml:"aliases"`
}

// NewResolver loads the alias table at authorsPath. A missing file is an
// empty table; a malformed one is a configuration error.
func NewResolver(authorsPath string, source Source, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		source:  source,
		aliases: make(map[string]string),
		logger:  logger,
	}

	data, err := os.ReadFile(authorsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, lerrors.New(lerrors.ConfigInvalid,
			fmt.Sprintf("reading %s", authorsPath), err)
	}

	var parsed authorsFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, lerrors.New(lerrors.ConfigInvalid,
			fmt.Sprintf("parsing %s", authorsPath), err)
	}
	for email, canonical := range parsed.Aliases {
		r.aliases[strings.ToLower(strings.TrimSpace(email))] = strings.TrimSpace(canonical)
	}

	if len(r.aliases) > 0 {
		logger.Debug("loaded author aliases", "count", len(r.aliases), "path", authorsPath)
	}
	return r, nil
}

// Resolve returns the canonical author for the repository's configured
// identity.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	raw, err := r.source.UserIdentity(ctx)
	if err != nil {
		return "", err
	}
	return r.Canonical(raw), nil
}

// Canonical maps one "Name <email>" identity through the alias table. An
// unaliased identity passes through unchanged.
func (r *Resolver) Canonical(ident string) string {
	_, email := SplitIdent(ident)
	if email == "" {
		return ident
	}
	if canonical, ok := r.aliases[strings.ToLower(email)]; ok {
		return canonical
	}
	return ident
}

// SplitIdent breaks "Name <email>" into its parts. Either part may be
// empty when the input does not carry it.
func SplitIdent(ident string) (name, email string) {
	start := strings.IndexByte(ident, '<')
	end := strings.IndexByte(ident, '>')
	if start < 0 || end < start {
		return strings.TrimSpace(ident), ""
	}
	return strings.TrimSpace(ident[:start]), strings.TrimSpace(ident[start+1 : end])
}
