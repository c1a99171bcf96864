package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lore/internal/config"
	"lore/internal/envelope"
	lerrors "lore/internal/errors"
	"lore/internal/identity"
	"lore/internal/paths"
	"lore/internal/query"
	"lore/internal/rewrite"
	"lore/internal/storage"
)

// DoctorResult is the doctor payload.
type DoctorResult struct {
	Healthy bool          `json:"healthy"`
	Checks  []DoctorCheck `json:"checks"`
}

// DoctorCheck is one diagnostic. Status is pass, warn, or fail; only
// fail makes the run unhealthy.
type DoctorCheck struct {
	Name           string              `json:"name"`
	Status         string              `json:"status"`
	Message        string              `json:"message"`
	SuggestedFixes []lerrors.FixAction `json:"suggestedFixes,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the lore setup",
	Long: `Run diagnostics: git availability, configuration validity, the notes
ref, corpus readability, the author alias map, and the index cache.
Exits nonzero when any check fails.`,
	Args: cobra.NoArgs,
	Run:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	rt := mustRuntime()
	defer rt.close()
	ctx := newContext()

	result := &DoctorResult{Healthy: true}
	add := func(c DoctorCheck) {
		if c.Status == "fail" {
			result.Healthy = false
		}
		result.Checks = append(result.Checks, c)
	}

	add(checkGit(rt, ctx))
	add(checkConfig(rt))
	add(checkNotesRef(rt, ctx))
	add(checkCorpus(rt, ctx))
	add(checkAuthors(rt))
	add(checkIndexCache(rt))
	add(checkPendingRewrite(rt, ctx))

	emit(rt, envelope.Operational(result))
	if !result.Healthy {
		rt.close()
		os.Exit(1)
	}
}

func checkGit(rt *runtime, ctx context.Context) DoctorCheck {
	if !rt.backend.Available(ctx) {
		return DoctorCheck{
			Name: "git", Status: "fail",
			Message: "git is not available or this is not a git repository",
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "git status", Safe: true,
				Description: "Verify you're inside a git repository",
			}},
		}
	}
	return DoctorCheck{Name: "git", Status: "pass", Message: "git found, repository detected"}
}

func checkConfig(rt *runtime) DoctorCheck {
	configPath := paths.ConfigPath(rt.repoRoot)
	if _, err := os.Stat(configPath); err != nil {
		return DoctorCheck{
			Name: "config", Status: "warn",
			Message: "no .lore/config.json; defaults in effect",
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "lore init", Safe: true,
				Description: "Write the default configuration",
			}},
		}
	}
	cfg, err := config.LoadConfig(rt.repoRoot)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return DoctorCheck{
			Name: "config", Status: "fail",
			Message: fmt.Sprintf("configuration invalid: %v", err),
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "lore init --force", Safe: false,
				Description: "Rewrite the default configuration",
			}},
		}
	}
	return DoctorCheck{Name: "config", Status: "pass", Message: configPath}
}

func checkNotesRef(rt *runtime, ctx context.Context) DoctorCheck {
	tip, err := rt.backend.RefTip(ctx)
	if err != nil {
		return DoctorCheck{Name: "notes ref", Status: "fail",
			Message: fmt.Sprintf("cannot read %s: %v", rt.cfg.Notes.Ref, err)}
	}
	if tip == "" {
		return DoctorCheck{
			Name: "notes ref", Status: "warn",
			Message: fmt.Sprintf("%s absent — nothing annotated yet", rt.cfg.Notes.Ref),
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: `lore annotate HEAD --summary "..."`, Safe: false,
				Description: "Record the first annotation",
			}},
		}
	}
	return DoctorCheck{Name: "notes ref", Status: "pass",
		Message: fmt.Sprintf("%s at %s", rt.cfg.Notes.Ref, shortCommit(tip))}
}

func checkCorpus(rt *runtime, ctx context.Context) DoctorCheck {
	engine := rt.newEngine(ctx)
	resp, err := engine.Stats(ctx)
	if err != nil {
		return DoctorCheck{Name: "corpus", Status: "fail",
			Message: fmt.Sprintf("cannot scan annotations: %v", err)}
	}
	stats, ok := resp.Data.(*query.CorpusStats)
	if !ok {
		return DoctorCheck{Name: "corpus", Status: "pass", Message: "readable"}
	}
	if stats.Corrupt > 0 {
		return DoctorCheck{
			Name: "corpus", Status: "warn",
			Message: fmt.Sprintf("%d of %d payloads unreadable; they are skipped, never deleted",
				stats.Corrupt, stats.Total),
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "lore migrate --stats", Safe: true,
				Description: "Break the corpus down by stored schema version",
			}},
		}
	}
	return DoctorCheck{Name: "corpus", Status: "pass",
		Message: fmt.Sprintf("%d annotations readable", stats.Total)}
}

func checkAuthors(rt *runtime) DoctorCheck {
	authorsPath := rt.cfg.Identity.AuthorsFile
	if authorsPath == "" {
		authorsPath = paths.AuthorsPath(rt.repoRoot)
	}
	if _, err := identity.NewResolver(authorsPath, rt.backend, rt.logger); err != nil {
		return DoctorCheck{
			Name: "authors", Status: "fail",
			Message: fmt.Sprintf("alias map unreadable: %v", err),
		}
	}
	return DoctorCheck{Name: "authors", Status: "pass", Message: "alias map readable"}
}

// checkPendingRewrite surfaces a synthesis marker nobody completed: the
// hook crashed, or was never installed.
func checkPendingRewrite(rt *runtime, ctx context.Context) DoctorCheck {
	gitDir, err := rt.backend.GitDir(ctx)
	if err != nil {
		return DoctorCheck{Name: "pending rewrite", Status: "pass", Message: "no git dir to inspect"}
	}
	op, err := rewrite.ReadPending(gitDir)
	if err != nil {
		return DoctorCheck{
			Name: "pending rewrite", Status: "warn",
			Message: fmt.Sprintf("marker unreadable: %v", err),
		}
	}
	if op == nil {
		return DoctorCheck{Name: "pending rewrite", Status: "pass", Message: "none"}
	}
	return DoctorCheck{
		Name: "pending rewrite", Status: "warn",
		Message: fmt.Sprintf("a %s synthesis is marked but unfinished", op.Kind),
		SuggestedFixes: []lerrors.FixAction{{
			Type: lerrors.RunCommand, Command: "lore rewrite", Safe: false,
			Description: "Complete the marked synthesis against HEAD",
		}},
	}
}

func checkIndexCache(rt *runtime) DoctorCheck {
	if !rt.cfg.Cache.Enabled {
		return DoctorCheck{Name: "index cache", Status: "pass", Message: "disabled by config"}
	}
	db, err := storage.Open(rt.repoRoot, rt.logger)
	if err != nil {
		// Queries degrade to corpus scans, so a broken cache is not fatal.
		return DoctorCheck{
			Name: "index cache", Status: "warn",
			Message: fmt.Sprintf("cannot open: %v (queries fall back to corpus scans)", err),
			SuggestedFixes: []lerrors.FixAction{{
				Type: lerrors.RunCommand, Command: "rm " + paths.DatabasePath(rt.repoRoot), Safe: false,
				Description: "Remove the cache; it rebuilds on the next query",
			}},
		}
	}
	_ = db.Close()
	return DoctorCheck{Name: "index cache", Status: "pass", Message: paths.DatabasePath(rt.repoRoot)}
}
