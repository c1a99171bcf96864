package main

import (
	"lore/internal/version"

	"github.com/spf13/cobra"
)

var (
	// formatFlag selects json (agent path) or human output
	formatFlag string
	// compactFlag strips indentation from json output
	compactFlag bool
	// verbosity is the count of -v flags
	verbosity int
	// quietFlag suppresses everything below warnings
	quietFlag bool
	// repoFlag overrides the repository root (default: cwd)
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "lore",
	Short: "lore - why-annotations on git notes",
	Long: `lore stores the "why" behind code as schema-versioned annotations in
git notes (refs/notes/lore). Annotations travel with clones, never touch
the working tree, and migrate forward on read, so records written years
ago stay answerable today.

Write at commit time, query by file, symbol, or line range:
  lore annotate HEAD --summary "Serialize flushes; the index tolerates gaps"
  lore explain internal/retry/loop.go --symbol nextDelay
  lore lookup internal/retry/loop.go`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("lore version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (json, human)")
	rootCmd.PersistentFlags().BoolVar(&compactFlag, "compact", false, "Compact json output (single line)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: current directory)")
}
