package main

import (
	"github.com/spf13/cobra"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/query"
	"lore/internal/version"
)

// StatusResult is the status payload.
type StatusResult struct {
	Version          string             `json:"version"`
	RepoRoot         string             `json:"repoRoot"`
	Ref              string             `json:"ref"`
	RefTip           string             `json:"refTip,omitempty"`
	Head             string             `json:"head,omitempty"`
	Remote           string             `json:"remote,omitempty"`
	KnowledgeEntries int                `json:"knowledgeEntries"`
	Corpus           *query.CorpusStats `json:"corpus,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository annotation status",
	Long: `Report where annotations live and how many there are: the notes ref and
its tip, the corpus broken down by stored schema version, and the
knowledge entry count.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	if !rt.backend.Available(ctx) {
		fail(rt, lerrors.New(lerrors.BackendUnavailable,
			"git is not available or this is not a git repository", nil))
	}

	result := &StatusResult{
		Version:  version.Version,
		RepoRoot: rt.repoRoot,
		Ref:      rt.cfg.Notes.Ref,
		Remote:   rt.cfg.Notes.Remote,
	}

	// The tip being absent is status, not an error.
	if tip, err := rt.backend.RefTip(ctx); err == nil {
		result.RefTip = tip
	}
	if head, err := rt.backend.Head(ctx); err == nil {
		result.Head = head.Commit
	}
	if entries, err := rt.knowledgeStore().List(ctx); err == nil {
		result.KnowledgeEntries = len(entries)
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Stats(ctx)
	if err != nil {
		fail(rt, err)
	}
	if corpus, ok := resp.Data.(*query.CorpusStats); ok {
		result.Corpus = corpus
	}

	emit(rt, envelope.Operational(result))
}
