// Package version exposes build metadata stamped in by the linker.
package version

var (
	// Version is the semantic version of the riskwatch binary.
	Version = "0.1.0-dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)
