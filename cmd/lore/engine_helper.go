package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"lore/internal/annotate"
	"lore/internal/config"
	"lore/internal/envelope"
	"lore/internal/identity"
	"lore/internal/knowledge"
	"lore/internal/notes"
	"lore/internal/paths"
	"lore/internal/query"
	"lore/internal/slogutil"
	"lore/internal/storage"
)

// runtime bundles everything a command needs: repo root, config, logger,
// and the notes backend. It is lazily built once per invocation.
type runtime struct {
	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
	backend  *notes.GitBackend
	closers  []io.Closer
}

var (
	runtimeOnce   sync.Once
	sharedRuntime *runtime
	runtimeErr    error
)

// getRuntime returns the shared runtime, building it on first use.
func getRuntime() (*runtime, error) {
	runtimeOnce.Do(func() {
		rt := &runtime{}

		rt.repoRoot = repoFlag
		if rt.repoRoot == "" {
			cwd, err := os.Getwd()
			if err != nil {
				runtimeErr = fmt.Errorf("resolving working directory: %w", err)
				return
			}
			rt.repoRoot = cwd
		}

		rt.logger = newStderrLogger()

		cfg, err := config.LoadConfig(rt.repoRoot)
		if err != nil {
			rt.logger.Warn("config unreadable, using defaults", "error", err)
			cfg = config.DefaultConfig()
		}
		rt.cfg = cfg

		if cfg.Logging.File {
			fileLogger, closer, ferr := slogutil.NewFileLoggerWithRotation(
				paths.LogPath(rt.repoRoot),
				slogutil.LevelFromString(cfg.Logging.Level),
				cfg.Logging.MaxSize, cfg.Logging.MaxBackups, cfg.Logging.MaxAgeDays)
			if ferr != nil {
				rt.logger.Warn("file logging unavailable", "error", ferr)
			} else {
				rt.closers = append(rt.closers, closer)
				rt.logger = slogutil.NewTeeLogger(rt.logger.Handler(), fileLogger.Handler())
			}
		}

		rt.backend = notes.NewGitBackend(rt.repoRoot, notes.GitOptions{
			Binary:  cfg.Git.Binary,
			Ref:     cfg.Notes.Ref,
			Remote:  cfg.Notes.Remote,
			Timeout: time.Duration(cfg.Git.TimeoutMs) * time.Millisecond,
		}, rt.logger)

		sharedRuntime = rt
	})
	return sharedRuntime, runtimeErr
}

// mustRuntime returns the shared runtime or exits.
func mustRuntime() *runtime {
	rt, err := getRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return rt
}

// newStderrLogger builds the terminal logger from the global verbosity flags.
func newStderrLogger() *slog.Logger {
	return slogutil.NewLogger(os.Stderr, slogutil.LevelFromVerbosity(verbosity, quietFlag))
}

// knowledgeBackend returns a backend bound to the knowledge ref instead of
// the annotation ref.
func (rt *runtime) knowledgeBackend() *notes.GitBackend {
	return notes.NewGitBackend(rt.repoRoot, notes.GitOptions{
		Binary:  rt.cfg.Git.Binary,
		Ref:     rt.cfg.Notes.KnowledgeRef,
		Remote:  rt.cfg.Notes.Remote,
		Timeout: time.Duration(rt.cfg.Git.TimeoutMs) * time.Millisecond,
	}, rt.logger)
}

// knowledgeStore returns the knowledge store for this repository.
func (rt *runtime) knowledgeStore() *knowledge.Store {
	return knowledge.NewStore(rt.knowledgeBackend(), rt.logger)
}

// newEngine builds the read engine. The sqlite index cache is an
// optimization: any failure opening or refreshing it downgrades queries to
// corpus scans with a log line, never an error.
func (rt *runtime) newEngine(ctx context.Context) *query.Engine {
	opts := query.Options{Knowledge: rt.knowledgeStore()}

	if rt.cfg.Cache.Enabled {
		db, err := storage.Open(rt.repoRoot, rt.logger)
		if err != nil {
			rt.logger.Warn("index cache unavailable; using corpus scans", "error", err)
		} else {
			rt.closers = append(rt.closers, db)
			ix := storage.NewIndex(db, rt.backend)
			if stats, err := ix.RefreshIfStale(ctx); err != nil {
				rt.logger.Warn("index refresh failed; using corpus scans", "error", err)
			} else {
				rt.logger.Debug("index cache ready",
					"rebuilt", stats.Rebuilt,
					"annotated", stats.Annotated,
					"depMarkers", stats.DepMarkers,
					"skipped", stats.Skipped)
				opts.Index = ix
			}
		}
	}

	return query.NewEngine(rt.backend, rt.cfg, rt.logger, opts)
}

// newPipeline builds the write pipeline with the identity alias map.
func (rt *runtime) newPipeline(ctx context.Context) (*annotate.Pipeline, error) {
	authorsPath := rt.cfg.Identity.AuthorsFile
	if authorsPath == "" {
		authorsPath = paths.AuthorsPath(rt.repoRoot)
	}
	resolver, err := identity.NewResolver(authorsPath, rt.backend, rt.logger)
	if err != nil {
		return nil, err
	}
	return annotate.New(rt.backend, resolver, rt.logger), nil
}

// close releases everything the runtime opened.
func (rt *runtime) close() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
}

// newContext returns the context for one command execution.
func newContext() context.Context {
	return context.Background()
}

// emit renders an envelope to stdout in the selected format and applies
// the exit code: envelopes carrying an error exit nonzero after printing.
func emit(rt *runtime, resp *envelope.Response) {
	out, err := FormatResponse(resp, OutputFormat(formatFlag), compactFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		rt.close()
		os.Exit(1)
	}
	fmt.Println(out)
	if resp.Error != nil {
		rt.close()
		os.Exit(1)
	}
}

// fail reports a command failure and exits 1. In json mode the failure is
// still a well-formed envelope on stdout so agents keep a parseable stream.
func fail(rt *runtime, err error) {
	if rt != nil {
		rt.logger.Error("command failed", "error", err)
	}
	if OutputFormat(formatFlag) == FormatJSON {
		resp := envelope.Failure(err)
		if out, ferr := FormatResponse(resp, FormatJSON, compactFlag); ferr == nil {
			fmt.Println(out)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printSuggestedFixes(os.Stderr, err)
	}
	if rt != nil {
		rt.close()
	}
	os.Exit(1)
}
