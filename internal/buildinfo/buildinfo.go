// Package buildinfo carries the build identifiers stamped in with
// -ldflags "-X egos/internal/buildinfo.Version=...".
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns a compact build identifier for the window title and the
// boot banner.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		if len(Commit) > 7 {
			return Commit[:7]
		}
		return Commit
	}
	return "dev"
}

// Line is the one-line build description logged at boot.
func Line() string {
	return fmt.Sprintf("egos %s (commit %s, built %s)", Version, Commit, Date)
}
