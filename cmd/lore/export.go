package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all annotations to a portable archive",
	Long: `Write every stored annotation to a zstd-compressed JSONL stream, bytes
preserved verbatim, so the corpus survives mirrors and rehosting where
notes refs get dropped. Old schema versions stay old in the archive;
migration remains a read-time concern on the importing side.

With no -o the archive goes to stdout.

Examples:
  lore export -o lore-backup.zst
  lore export | ssh mirror lore import -`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write the archive to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	toStdout := exportOutput == "" || exportOutput == "-"
	var w io.Writer = os.Stdout
	var f *os.File
	if !toStdout {
		var err error
		f, err = os.Create(exportOutput)
		if err != nil {
			fail(rt, lerrors.New(lerrors.InternalError, "creating export file", err))
		}
		w = f
	}

	stats, err := export.Export(ctx, rt.backend, rt.cfg.Notes.Ref, w)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		fail(rt, err)
	}
	if f != nil {
		if err := f.Close(); err != nil {
			fail(rt, lerrors.New(lerrors.InternalError, "flushing export file", err))
		}
	}

	if toStdout {
		// The archive owns stdout; the summary goes to stderr.
		fmt.Fprintf(os.Stderr, "✓ Exported %d annotations\n", stats.Annotations)
		return
	}
	if OutputFormat(formatFlag) == FormatHuman {
		fmt.Printf("✓ Exported %d annotations to %s\n", stats.Annotations, exportOutput)
		return
	}
	emit(rt, envelope.Operational(&stats))
}
