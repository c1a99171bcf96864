package query

import (
	"fmt"
	"strings"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

// Scope names the code a query is about: one or more files, optionally
// narrowed to a code-unit anchor or an explicit line range. Anchor and
// Lines are mutually exclusive; whole-file is the zero narrowing.
type Scope struct {
	Files  []string          `json:"files"`
	Anchor string            `json:"anchor,omitempty"`
	Lines  *schema.LineRange `json:"lines,omitempty"`
}

// FileScope is a whole-file scope.
func FileScope(files ...string) Scope {
	return Scope{Files: files}
}

// AnchorScope narrows a file to one code unit by name.
func AnchorScope(file, anchor string) Scope {
	return Scope{Files: []string{file}, Anchor: anchor}
}

// LineScope narrows a file to an explicit line range.
func LineScope(file string, start, end int) Scope {
	return Scope{Files: []string{file}, Lines: &schema.LineRange{Start: start, End: end}}
}

// Validate rejects structurally impossible scopes before any git work.
func (s Scope) Validate() error {
	if len(s.Files) == 0 {
		return lerrors.New(lerrors.ScopeInvalid, "scope names no files", nil)
	}
	for _, f := range s.Files {
		if strings.TrimSpace(f) == "" {
			return lerrors.New(lerrors.ScopeInvalid, "scope contains an empty file path", nil)
		}
	}
	if s.Anchor != "" && s.Lines != nil {
		return lerrors.New(lerrors.ScopeInvalid,
			"scope narrows by both anchor and lines; pick one", nil)
	}
	if s.Lines != nil && !s.Lines.Valid() {
		return lerrors.New(lerrors.ScopeInvalid,
			fmt.Sprintf("line range %d:%d is not ordered", s.Lines.Start, s.Lines.End), nil)
	}
	return nil
}

// Label renders the scope for logs and suggested follow-up commands.
func (s Scope) Label() string {
	file := strings.Join(s.Files, ",")
	switch {
	case s.Anchor != "":
		return file + "#" + s.Anchor
	case s.Lines != nil:
		return fmt.Sprintf("%s:%d-%d", file, s.Lines.Start, s.Lines.End)
	default:
		return file
	}
}
