// Package version carries the binary's version identity.
package version

import (
	"fmt"
	"runtime/debug"
)

// Stamped at release build time:
// go build -ldflags "-X lore/internal/version.Version=1.0.0 -X lore/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the lore binary.
	Version = "0.4.0"

	// Commit is the git commit the binary was built from.
	Commit = ""

	// BuildDate is the build timestamp.
	BuildDate = ""
)

// String renders the version with whatever build detail is known, e.g.
// "0.4.0 (1a2b3c4, 2026-08-01)". Builds that were not stamped fall back
// to the VCS info Go embeds in module builds.
func String() string {
	commit, date := Commit, BuildDate
	if commit == "" || date == "" {
		vcsCommit, vcsDate := fromBuildInfo()
		if commit == "" {
			commit = vcsCommit
		}
		if date == "" {
			date = vcsDate
		}
	}

	switch {
	case commit != "" && date != "":
		return fmt.Sprintf("%s (%s, %s)", Version, shortCommit(commit), date)
	case commit != "":
		return fmt.Sprintf("%s (%s)", Version, shortCommit(commit))
	default:
		return Version
	}
}

// fromBuildInfo reads the vcs stamp embedded by the Go toolchain.
func fromBuildInfo() (commit, date string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			date = s.Value
		}
	}
	return commit, date
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
