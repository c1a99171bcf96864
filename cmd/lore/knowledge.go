package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lore/internal/envelope"
	"lore/internal/knowledge"
)

// KnowledgeListResult is the list payload; a named type so the human
// formatter can recognize it.
type KnowledgeListResult struct {
	Entries []knowledge.Entry `json:"entries"`
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage repo-wide knowledge entries",
	Long: `Knowledge entries are facts about the whole repository rather than one
commit: conventions every change must follow, module boundaries, and
anti-patterns with their replacements. They live on their own notes ref
(refs/notes/lore-knowledge) and surface automatically in explain and
lookup results whose scope they cover.`,
}

var (
	knowledgeAddKind      string
	knowledgeAddRule      string
	knowledgeAddScope     []string
	knowledgeAddStability string
	knowledgeAddModule    string
	knowledgeAddOwns      []string
	knowledgeAddBoundary  string
	knowledgeAddPattern   string
	knowledgeAddInstead   string
)

var knowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a knowledge entry",
	Long: `Add one entry. Each kind has its own fields:

  convention:   --rule (required), --scope (glob, repeatable), --stability
  boundary:     --module (required), --owns (repeatable), --boundary
  anti_pattern: --pattern (required), --instead (required)

Examples:
  lore knowledge add --kind convention --rule "errors wrap with %w, never %v" --scope "internal/**"
  lore knowledge add --kind boundary --module internal/wal --owns "segment files" \
    --boundary "only the wal package opens segment files"
  lore knowledge add --kind anti_pattern --pattern "time.Sleep in tests" --instead "fake clock"`,
	Args: cobra.NoArgs,
	Run:  runKnowledgeAdd,
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge entries",
	Args:  cobra.NoArgs,
	Run:   runKnowledgeList,
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a knowledge entry",
	Args:  cobra.ExactArgs(1),
	Run:   runKnowledgeRemove,
}

var knowledgeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from a team seed file",
	Long: `Import entries from a .yaml/.yml or .toml seed file. Each entry is
validated like an add; invalid entries are skipped with a count.

Seed file shape (yaml):
  entries:
    - kind: convention
      rule: errors wrap with %w
      scope: ["internal/**"]`,
	Args: cobra.ExactArgs(1),
	Run:  runKnowledgeImport,
}

func init() {
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddKind, "kind", "", "Entry kind: convention, boundary, or anti_pattern (required)")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddRule, "rule", "", "The convention to follow")
	knowledgeAddCmd.Flags().StringArrayVar(&knowledgeAddScope, "scope", nil, "Path glob the convention covers (repeatable)")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddStability, "stability", "", "How settled the convention is")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddModule, "module", "", "The module a boundary describes")
	knowledgeAddCmd.Flags().StringArrayVar(&knowledgeAddOwns, "owns", nil, "What the module owns (repeatable)")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddBoundary, "boundary", "", "The boundary rule")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddPattern, "pattern", "", "The pattern to avoid")
	knowledgeAddCmd.Flags().StringVar(&knowledgeAddInstead, "instead", "", "What to do instead")
	_ = knowledgeAddCmd.MarkFlagRequired("kind")

	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeRemoveCmd)
	knowledgeCmd.AddCommand(knowledgeImportCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	entry := knowledge.Entry{
		Kind:      knowledge.Kind(knowledgeAddKind),
		Rule:      knowledgeAddRule,
		Scope:     knowledgeAddScope,
		Stability: knowledgeAddStability,
		Module:    knowledgeAddModule,
		Owns:      knowledgeAddOwns,
		Boundary:  knowledgeAddBoundary,
		Pattern:   knowledgeAddPattern,
		Instead:   knowledgeAddInstead,
	}

	added, err := rt.knowledgeStore().Add(ctx, entry)
	if err != nil {
		fail(rt, err)
	}
	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("✓ Added %s entry %s\n", added.Kind, added.ID)
		return
	}
	emit(rt, envelope.Operational(added))
}

func runKnowledgeList(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	entries, err := rt.knowledgeStore().List(ctx)
	if err != nil {
		fail(rt, err)
	}
	emit(rt, envelope.Operational(&KnowledgeListResult{Entries: entries}))
}

func runKnowledgeRemove(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	removed, err := rt.knowledgeStore().Remove(ctx, args[0])
	if err != nil {
		fail(rt, err)
	}
	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("✓ Removed %s entry %s\n", removed.Kind, removed.ID)
		return
	}
	emit(rt, envelope.Operational(removed))
}

func runKnowledgeImport(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	stats, err := rt.knowledgeStore().Import(ctx, args[0])
	if err != nil {
		fail(rt, err)
	}
	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("✓ Imported %d entries", stats.Imported)
		if stats.Rejected > 0 {
			fmt.Printf(" (%d rejected as invalid)", stats.Rejected)
		}
		fmt.Println()
		return
	}
	emit(rt, envelope.Operational(stats))
}
