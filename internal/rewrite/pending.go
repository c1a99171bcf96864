package rewrite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	lerrors "lore/internal/errors"
	"lore/internal/paths"
)

// PendingOp is the marker a pre-rewrite hook stage leaves in the git dir so
// the post-rewrite stage knows what kind of operation just ran. Target is
// usually empty when written; the new commit does not exist yet.
type PendingOp struct {
	Kind    Kind     `json:"kind"`
	Sources []string `json:"sources,omitempty"`
	Target  string   `json:"target,omitempty"`
}

// WritePending records a pending rewrite operation. An existing marker is
// replaced; rewrites do not nest.
func WritePending(gitDir string, op PendingOp) error {
	if _, err := ParseKind(string(op.Kind)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return lerrors.New(lerrors.InternalError, "encoding pending operation", err)
	}
	path := paths.PendingOpPath(gitDir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return lerrors.New(lerrors.InternalError,
			fmt.Sprintf("writing pending operation marker %s", path), err)
	}
	return nil
}

// ReadPending returns the pending operation, or nil when none is recorded.
func ReadPending(gitDir string) (*PendingOp, error) {
	path := paths.PendingOpPath(gitDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, lerrors.New(lerrors.InternalError,
			fmt.Sprintf("reading pending operation marker %s", path), err)
	}

	var op PendingOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, lerrors.New(lerrors.ValidationFailed,
			"pending operation marker is not valid JSON; remove it and pass --kind explicitly", err)
	}
	if _, err := ParseKind(string(op.Kind)); err != nil {
		return nil, err
	}
	return &op, nil
}

// ClearPending removes the marker. Missing is fine; the marker is
// single-use and a crashed hook may have consumed it already.
func ClearPending(gitDir string) error {
	err := os.Remove(paths.PendingOpPath(gitDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return lerrors.New(lerrors.InternalError, "removing pending operation marker", err)
	}
	return nil
}
