// Package version provides version information for the srcchunk CLI.
package version

import (
	"fmt"
	"runtime"
)

// AppName is reported in logs and version output.
const AppName = "srcchunk"

// These variables are populated at build time using -ldflags.
// Example:
// go build -ldflags "-X 'srcchunk/pkg/version.Version=0.3.0' -X 'srcchunk/pkg/version.Commit=abcdefg' -X 'srcchunk/pkg/version.BuildTime=2025-01-10T09:30:00Z'"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info contains comprehensive version information.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	Platform  string // OS and architecture
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the version information on a single line, e.g.
// srcchunk version 0.3.0 (commit: abcdefg) built at 2025-01-10T09:30:00Z with go1.24.0 on linux/amd64
func (i Info) String() string {
	return fmt.Sprintf(
		"%s version %s (commit: %s) built at %s with %s on %s",
		AppName,
		i.Version,
		i.GitCommit,
		i.BuildTime,
		i.GoVersion,
		i.Platform,
	)
}
