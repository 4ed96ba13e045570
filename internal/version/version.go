// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag.
	Version = "dev"
	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// Info returns the full build description.
func Info() string {
	return fmt.Sprintf("Version: %s, Commit: %s, Built: %s, Go: %s",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns just the version.
func Short() string {
	return Version
}

// Component prefixes the build description with a binary name.
func Component(name string) string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", name, Version, GitCommit, BuildDate)
}
