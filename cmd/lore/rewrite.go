package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/rewrite"
)

var (
	rewriteKind    string
	rewriteSources []string
	rewriteTarget  string
	rewriteMark    bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Carry annotations across a history rewrite",
	Long: `Synthesize an annotation on a rewritten commit from the annotations of
the commits it replaced. The rewrite kind is never guessed from the
commit graph: it comes from --kind or from the pending-operation marker
(.git/lore-pending.json) written before the rewrite.

  amend   one source commit; its annotation moves to the new commit
  squash  several sources; their annotations merge into one record
  merge   no sources; hand-resolved conflict hunks get hazard markers

With --mark, no synthesis happens: the kind (and sources, if known) are
written to the pending marker for the post-commit hook to complete.

Examples:
  lore rewrite --kind amend --source a1b2c3d --target HEAD
  lore rewrite --kind squash --source a1b2c3d --source e4f5a6b --target HEAD
  lore rewrite --mark --kind squash --source a1b2c3d --source e4f5a6b
  lore rewrite                       # completes the pending operation against HEAD`,
	Args: cobra.NoArgs,
	Run:  runRewrite,
}

func init() {
	rewriteCmd.Flags().StringVar(&rewriteKind, "kind", "", "Rewrite kind (amend, squash, merge)")
	rewriteCmd.Flags().StringArrayVar(&rewriteSources, "source", nil, "Replaced commit id (repeatable)")
	rewriteCmd.Flags().StringVar(&rewriteTarget, "target", "", "The rewritten commit (default: HEAD)")
	rewriteCmd.Flags().BoolVar(&rewriteMark, "mark", false, "Write the pending-operation marker instead of synthesizing")
	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	gitDir, err := rt.backend.GitDir(ctx)
	if err != nil {
		fail(rt, err)
	}

	if rewriteMark {
		if rewriteKind == "" {
			fail(rt, lerrors.New(lerrors.ValidationFailed, "--mark needs --kind", nil))
		}
		op := rewrite.PendingOp{Kind: rewrite.Kind(rewriteKind), Sources: rewriteSources, Target: rewriteTarget}
		if err := rewrite.WritePending(gitDir, op); err != nil {
			fail(rt, err)
		}
		fmt.Printf("✓ Pending %s recorded; the post-commit hook will complete it.\n", rewriteKind)
		return
	}

	kind := rewriteKind
	sources := rewriteSources
	target := rewriteTarget
	usedMarker := false

	// Flags absent: fall back to the marker a pre-rewrite stage left behind.
	if kind == "" {
		pending, err := rewrite.ReadPending(gitDir)
		if err != nil {
			fail(rt, err)
		}
		if pending == nil {
			fail(rt, lerrors.New(lerrors.ValidationFailed,
				"no --kind given and no pending operation is marked; nothing to synthesize", nil))
		}
		usedMarker = true
		kind = string(pending.Kind)
		if len(sources) == 0 {
			sources = pending.Sources
		}
		if target == "" {
			target = pending.Target
		}
	}

	parsedKind, err := rewrite.ParseKind(kind)
	if err != nil {
		fail(rt, err)
	}

	if target == "" {
		target = "HEAD"
	}
	// Sources stay unresolved: after a rewrite they are often unreachable,
	// and the synthesizer tolerates that. The target must exist.
	resolvedTarget, err := rt.backend.ResolveRef(ctx, target)
	if err != nil {
		fail(rt, err)
	}

	pipeline, err := rt.newPipeline(ctx)
	if err != nil {
		fail(rt, err)
	}
	syn := rewrite.New(rt.backend, pipeline, rt.logger)
	result, err := syn.Synthesize(ctx, parsedKind, sources, resolvedTarget)
	if err != nil {
		fail(rt, err)
	}

	if usedMarker {
		if err := rewrite.ClearPending(gitDir); err != nil {
			rt.logger.Warn("pending marker not cleared", "error", err)
		}
	}

	resp := envelope.Operational(result)
	if result.Receipt != nil {
		resp.Warnings = append(resp.Warnings, result.Receipt.Warnings...)
	}
	emit(rt, resp)
}
