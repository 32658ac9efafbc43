// Package version holds build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns just the version string.
func Short() string {
	return Version
}

// Info returns the full version line.
func Info() string {
	return fmt.Sprintf("netaudit %s (commit %s, built %s)", Version, Commit, Date)
}
