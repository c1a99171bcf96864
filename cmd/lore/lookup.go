package main

import (
	"github.com/spf13/cobra"
)

var (
	lookupSymbol string
	lookupLines  string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <path>...",
	Short: "Everything to know before touching this code",
	Long: `The pre-edit composite: contracts in force, hazards, the decisions
behind the current shape, recent annotation history, covering knowledge,
and staleness in one call instead of four. This is the query an agent
runs before proposing a change.

Examples:
  lore lookup internal/wal/writer.go
  lore lookup internal/wal/writer.go --symbol Flush`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLookup,
}

func init() {
	lookupCmd.Flags().StringVar(&lookupSymbol, "symbol", "", "Narrow to a code unit by name")
	lookupCmd.Flags().StringVar(&lookupLines, "lines", "", "Narrow to a line range 'start:end'")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	scope, err := scopeFor(rt.repoRoot, args, lookupSymbol, lookupLines)
	if err != nil {
		fail(rt, err)
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Lookup(ctx, scope)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
