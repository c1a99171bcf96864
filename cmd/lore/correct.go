package main

import (
	"github.com/spf13/cobra"

	"lore/internal/schema"
)

var (
	correctField  string
	correctOld    string
	correctNew    string
	correctReason string
)

var correctCmd = &cobra.Command{
	Use:   "correct <commit>",
	Short: "Append a correction to an existing annotation",
	Long: `Record that a field of an existing annotation is wrong and what the
right value is. The original record is never rewritten: the correction is
appended to the note and folded in whenever the annotation is read, so
the history of what was believed stays inspectable.

  lore correct HEAD~3 --field narrative.summary \
    --new "Retries cap at 5, not 3" --reason "cap was raised in a fixup"`,
	Args: cobra.ExactArgs(1),
	Run:  runCorrect,
}

func init() {
	correctCmd.Flags().StringVar(&correctField, "field", "", "Dotted path of the field being corrected (required)")
	correctCmd.Flags().StringVar(&correctOld, "old", "", "The incorrect value, for the record")
	correctCmd.Flags().StringVar(&correctNew, "new", "", "The corrected value (required)")
	correctCmd.Flags().StringVar(&correctReason, "reason", "", "Why the original was wrong (required)")
	_ = correctCmd.MarkFlagRequired("field")
	_ = correctCmd.MarkFlagRequired("new")
	_ = correctCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(correctCmd)
}

func runCorrect(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	commit, err := rt.backend.ResolveRef(ctx, args[0])
	if err != nil {
		fail(rt, err)
	}

	pipeline, err := rt.newPipeline(ctx)
	if err != nil {
		fail(rt, err)
	}
	receipt, err := pipeline.Correct(ctx, commit, schema.Correction{
		Field:    correctField,
		OldValue: correctOld,
		NewValue: correctNew,
		Reason:   correctReason,
	})
	if err != nil {
		fail(rt, err)
	}
	emit(rt, receiptEnvelope(receipt))
}
