package main

import (
	"github.com/spf13/cobra"

	lerrors "lore/internal/errors"
	"lore/internal/paths"
)

var dependentsSymbol string

var dependentsCmd = &cobra.Command{
	Use:   "dependents <path>",
	Short: "Show what assumes something about this code",
	Long: `The inverse query: every annotation anywhere in the repository whose
dependency markers point at this location. Run it before changing
behavior. The callers that wrote those assumptions down are the ones
that break quietly.

Examples:
  lore dependents internal/wal/writer.go
  lore dependents internal/wal/writer.go --symbol Flush`,
	Args: cobra.ExactArgs(1),
	Run:  runDependents,
}

func init() {
	dependentsCmd.Flags().StringVar(&dependentsSymbol, "symbol", "", "Narrow to a code unit by name")
	rootCmd.AddCommand(dependentsCmd)
}

func runDependents(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	file, err := paths.Canonical(args[0], rt.repoRoot)
	if err != nil {
		fail(rt, lerrors.New(lerrors.ScopeInvalid, err.Error(), nil))
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Dependents(ctx, file, dependentsSymbol)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
