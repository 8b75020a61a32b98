// Package version exposes build-time version information.
package version

import "fmt"

// Set via -ldflags at build time; "dev" for local builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("netglance %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns the version fields for structured responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
