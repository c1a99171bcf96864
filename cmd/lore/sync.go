package main

import (
	"github.com/spf13/cobra"

	"lore/internal/envelope"
	"lore/internal/notes"
)

// SyncResult reports which directions ran.
type SyncResult struct {
	Fetched bool   `json:"fetched"`
	Pushed  bool   `json:"pushed"`
	Ref     string `json:"ref"`
	Remote  string `json:"remote"`
}

var (
	syncPush  bool
	syncFetch bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch and push the notes refs",
	Long: `Exchange annotations with the configured remote. Notes refs are not
fetched or pushed by a plain git pull/push, so sync moves them
explicitly. Both directions refuse to clobber: a rejected push means
the remote has notes you do not, and the fix is to fetch first.

With no flags, sync fetches and then pushes. --fetch or --push limit it
to one direction.

Examples:
  lore sync
  lore sync --fetch
  lore sync --push`,
	Args: cobra.NoArgs,
	Run:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPush, "push", false, "Only push local notes to the remote")
	syncCmd.Flags().BoolVar(&syncFetch, "fetch", false, "Only fetch remote notes")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	// No direction flag means both, fetch first so a stale local ref
	// does not turn the push into a spurious divergence.
	doFetch := syncFetch || !syncPush
	doPush := syncPush || !syncFetch

	result := &SyncResult{Ref: rt.cfg.Notes.Ref, Remote: rt.cfg.Notes.Remote}

	// Both refs move together; annotations without their knowledge
	// entries are half a corpus.
	backends := []*notes.GitBackend{rt.backend, rt.knowledgeBackend()}
	if doFetch {
		for _, b := range backends {
			if err := b.Fetch(ctx); err != nil {
				fail(rt, err)
			}
		}
		result.Fetched = true
	}
	if doPush {
		for _, b := range backends {
			if err := b.Push(ctx); err != nil {
				fail(rt, err)
			}
		}
		result.Pushed = true
	}

	emit(rt, envelope.Operational(result))
}
