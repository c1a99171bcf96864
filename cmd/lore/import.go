package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/export"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import annotations from an exported archive",
	Long: `Read a 'lore export' archive and attach its annotations to the matching
commits. Every payload is validated before it is written; an existing
note is never overwritten, and lines for commits this repository does
not have are counted rather than fatal.

Pass '-' to read the archive from stdin.

Examples:
  lore import lore-backup.zst
  lore export | ssh mirror lore import -`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			fail(rt, lerrors.New(lerrors.ValidationFailed, "cannot open archive", err))
		}
		defer f.Close()
		r = f
	}

	stats, err := export.Import(ctx, rt.backend, r, rt.logger)
	if err != nil {
		fail(rt, err)
	}

	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("✓ Imported %d annotations", stats.Imported)
		var extra []string
		if stats.Existing > 0 {
			extra = append(extra, fmt.Sprintf("%d already present", stats.Existing))
		}
		if stats.Missing > 0 {
			extra = append(extra, fmt.Sprintf("%d commits not in this repository", stats.Missing))
		}
		if stats.Corrupt > 0 {
			extra = append(extra, fmt.Sprintf("%d corrupt lines skipped", stats.Corrupt))
		}
		if len(extra) > 0 {
			fmt.Printf(" (%s)", strings.Join(extra, ", "))
		}
		fmt.Println()
		return
	}
	emit(rt, envelope.Operational(&stats))
}
