// Package version holds build metadata injected with -ldflags -X.
package version

var (
	// Version is the release of mrow
	Version = "unknown"

	// GitCommit is the commit mrow was built from
	GitCommit = "unknown"
)
