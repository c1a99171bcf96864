package main

import (
	lerrors "lore/internal/errors"
	"lore/internal/paths"
	"lore/internal/query"
)

// scopeFor builds a query scope from positional file arguments plus the
// --symbol/--lines narrowing flags. File arguments are rebased onto the
// repo-relative form annotation records use, so absolute paths and ./
// prefixes resolve to the same scope. Scope.Validate rejects the
// impossible combinations.
func scopeFor(repoRoot string, files []string, symbol, lines string) (query.Scope, error) {
	canon := make([]string, len(files))
	for i, f := range files {
		c, err := paths.Canonical(f, repoRoot)
		if err != nil {
			return query.Scope{}, lerrors.New(lerrors.ScopeInvalid, err.Error(), nil)
		}
		canon[i] = c
	}
	scope := query.FileScope(canon...)
	if symbol != "" {
		scope.Anchor = symbol
	}
	if lines != "" {
		r, err := parseLineRange(lines, ":")
		if err != nil {
			return query.Scope{}, lerrors.New(lerrors.ScopeInvalid, err.Error(), nil)
		}
		scope.Lines = r
	}
	if err := scope.Validate(); err != nil {
		return query.Scope{}, err
	}
	return scope, nil
}
