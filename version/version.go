// Package version holds the build information of edgeprobe.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Package is filled at linking time
	Package = "github.com/leptonai/edgeprobe"

	// Version holds the complete version number. Filled in at linking time.
	Version = "0.0.1+unknown"

	// Revision is filled with the VCS (e.g. git) revision being used to build
	// the program at linking time.
	Revision = ""

	// BuildTimestamp is the build timestamp.
	BuildTimestamp = ""

	// GoVersion is Go tree's version.
	GoVersion = runtime.Version()
)

// String returns the one-line version banner printed by the CLI.
func String() string {
	s := fmt.Sprintf("%s %s", Package, Version)
	if Revision != "" {
		s += fmt.Sprintf(" (%s)", Revision)
	}
	if BuildTimestamp != "" {
		s += " built " + BuildTimestamp
	}
	return s + " " + GoVersion
}
