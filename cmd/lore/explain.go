package main

import (
	"github.com/spf13/cobra"
)

var (
	explainSymbol string
	explainLines  string
)

var explainCmd = &cobra.Command{
	Use:   "explain <path>...",
	Short: "Explain why code is the way it is",
	Long: `Resolve a scope to its annotated commits and show the why: narrative,
markers, decisions, who depends on the code, and any repo-wide knowledge
covering it. Records written under older schema versions migrate on read.

Examples:
  lore explain internal/retry/loop.go
  lore explain internal/retry/loop.go --symbol nextDelay
  lore explain internal/retry/loop.go --lines 80:120`,
	Args: cobra.MinimumNArgs(1),
	Run:  runExplain,
}

func init() {
	explainCmd.Flags().StringVar(&explainSymbol, "symbol", "", "Narrow to a code unit by name")
	explainCmd.Flags().StringVar(&explainLines, "lines", "", "Narrow to a line range 'start:end'")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	scope, err := scopeFor(rt.repoRoot, args, explainSymbol, explainLines)
	if err != nil {
		fail(rt, err)
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Explain(ctx, scope)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
