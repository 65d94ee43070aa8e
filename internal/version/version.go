// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/jmgilman/atlaspack/internal/version.Version=v0.3.0 \
//	                   -X github.com/jmgilman/atlaspack/internal/version.Commit=abc123 \
//	                   -X github.com/jmgilman/atlaspack/internal/version.Date=2026-01-01"
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO 8601 format.
	Date = "unknown"
)

// String renders the build metadata as printed by the version command.
func String() string {
	return fmt.Sprintf("atlaspack %s\n  commit: %s\n  built:  %s\n", Version, Commit, Date)
}
