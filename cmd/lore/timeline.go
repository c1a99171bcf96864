package main

import (
	"github.com/spf13/cobra"
)

var (
	timelineSymbol string
	timelineLines  string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <path>",
	Short: "Every annotation that ever touched a scope, in order",
	Long: `Unlike explain, timeline never collapses by recency: every annotated
commit in the scope's history appears, oldest first. Synthesized records
(from squashes and amends) pull in the pre-rewrite annotations they were
built from, one hop, so rewritten history stays answerable.

Examples:
  lore timeline internal/retry/loop.go
  lore timeline internal/retry/loop.go --symbol nextDelay`,
	Args: cobra.ExactArgs(1),
	Run:  runTimeline,
}

func init() {
	timelineCmd.Flags().StringVar(&timelineSymbol, "symbol", "", "Narrow to a code unit by name")
	timelineCmd.Flags().StringVar(&timelineLines, "lines", "", "Narrow to a line range 'start:end'")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	scope, err := scopeFor(rt.repoRoot, args, timelineSymbol, timelineLines)
	if err != nil {
		fail(rt, err)
	}

	engine := rt.newEngine(ctx)
	resp, err := engine.Timeline(ctx, scope)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, resp)
}
