package main

import (
	"github.com/spf13/cobra"

	lerrors "lore/internal/errors"
	"lore/internal/paths"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <path>",
	Short: "Digest of a file: the newest annotation per anchor",
	Long: `One row per distinct anchor in the file, each showing the newest
surviving annotation stripped to its summary, fact counts, and
staleness. The fast way to see what is known about a file before
opening it.`,
	Args: cobra.ExactArgs(1),
	Run:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	file, err := paths.Canonical(args[0], rt.repoRoot)
	if err != nil {
		fail(rt, lerrors.New(lerrors.ScopeInvalid, err.Error(), nil))
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Summary(ctx, file)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
