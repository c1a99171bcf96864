package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"lore/internal/config"
	lerrors "lore/internal/errors"
	"lore/internal/paths"
)

var (
	initForce bool
	initHooks bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize lore in this repository",
	Long: `Creates .lore/config.json with the default configuration.

With --hooks, also writes sample git hooks (post-commit, post-rewrite)
into .git/hooks as *.lore-sample files. The samples call 'lore rewrite'
so annotations follow commits across amends, squashes, and rebases;
rename them to activate, or merge them into existing hooks.`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	initCmd.Flags().BoolVar(&initHooks, "hooks", false, "Write sample git hooks that call 'lore rewrite'")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	if !rt.backend.Available(ctx) {
		fail(rt, lerrors.New(lerrors.BackendUnavailable,
			"git is not available or this is not a git repository", nil))
	}

	configPath := paths.ConfigPath(rt.repoRoot)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		// Already initialized is success, so CI can run init unconditionally.
		fmt.Println("lore already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("\nRun 'lore init --force' to rewrite the defaults.")
		return
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(rt.repoRoot); err != nil {
		fail(rt, err)
	}
	fmt.Printf("✓ Configuration written to %s\n", configPath)

	if initHooks {
		gitDir, err := rt.backend.GitDir(ctx)
		if err != nil {
			fail(rt, err)
		}
		written, err := writeHookSamples(gitDir)
		if err != nil {
			fail(rt, err)
		}
		for _, path := range written {
			fmt.Printf("✓ Hook sample written to %s\n", path)
		}
		fmt.Println("\nRename the samples (drop .lore-sample) to activate them.")
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. lore annotate HEAD --summary \"...\"   # record your first why")
	fmt.Println("  2. lore doctor                           # verify the setup")
}

// postCommitHook carries annotations across 'git commit --amend'. The
// pending marker is written before the amend (by the post-rewrite stage or
// by tooling); the hook only completes it with the new commit id.
const postCommitHook = `#!/bin/sh
# lore sample hook: complete a pending annotation synthesis after a commit.
if [ -f "$(git rev-parse --git-dir)/lore-pending.json" ]; then
    lore rewrite --target "$(git rev-parse HEAD)" || true
fi
`

// postRewriteHook receives "old-sha new-sha" pairs on stdin. Several old
// commits mapping to one new commit means those commits were squashed.
const postRewriteHook = `#!/bin/sh
# lore sample hook: carry annotations across amends and rebases.
tmp="$(mktemp)"
cat >"$tmp"
awk '{print $2}' "$tmp" | sort -u | while read -r new; do
    [ -n "$new" ] || continue
    sources=$(awk -v n="$new" '$2 == n {printf " --source %s", $1}' "$tmp")
    count=$(awk -v n="$new" '$2 == n' "$tmp" | wc -l)
    kind="amend"
    [ "$count" -gt 1 ] && kind="squash"
    # shellcheck disable=SC2086
    lore rewrite --kind "$kind" $sources --target "$new" || true
done
rm -f "$tmp"
`

func writeHookSamples(gitDir string) ([]string, error) {
	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return nil, lerrors.New(lerrors.InternalError, "creating hooks directory", err)
	}

	samples := map[string]string{
		"post-commit.lore-sample":  postCommitHook,
		"post-rewrite.lore-sample": postRewriteHook,
	}
	var written []string
	for name, body := range samples {
		path := filepath.Join(hooksDir, name)
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			return nil, lerrors.New(lerrors.InternalError, fmt.Sprintf("writing %s", name), err)
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}
