// Package buildinfo carries the version stamped into the binary with -ldflags:
//
//	-X 'github.com/m3rciful/assistbot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/assistbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/assistbot/core/buildinfo.Date=2026-01-30T12:00:00Z'
package buildinfo

import "strings"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source commit.
	Commit = "local"
	// Date is the build time in RFC3339.
	Date = ""
)

// String renders "assistbot <version> (<commit>) <date>" for the version command.
func String() string {
	parts := []string{"assistbot", Version, "(" + Commit + ")"}
	if Date != "" {
		parts = append(parts, Date)
	}
	return strings.Join(parts, " ")
}
