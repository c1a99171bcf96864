package main

import (
	"github.com/spf13/cobra"

	lerrors "lore/internal/errors"
)

var migrateStats bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Report schema versions in the corpus",
	Long: `Annotations migrate when they are read: a stored lore/v1 or lore/v2
payload is upgraded in memory and the note itself is never rewritten,
so history diffs stay clean and old readers keep working. There is
nothing to run after an upgrade.

'migrate --stats' breaks the corpus down by stored schema version and
counts the payloads still upgrading on read.`,
	Args: cobra.NoArgs,
	Run:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStats, "stats", false, "Break the corpus down by stored schema version")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	if !migrateStats {
		fail(rt, lerrors.NewLoreError(lerrors.ValidationFailed,
			"annotations migrate on read; there is no in-place rewrite to run", nil,
			[]lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "lore migrate --stats", Safe: true,
				Description: "See how many stored payloads still upgrade on read",
			}}, nil))
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Stats(ctx)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
