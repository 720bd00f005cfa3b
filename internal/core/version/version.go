// Package version reports build metadata stamped in with -ldflags
//
//	go build -ldflags "-X laneledger/internal/core/version.version=v0.3.0 -X laneledger/internal/core/version.commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// BuildInfo is served by /meta/version and /meta/limits
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version,omitempty"`
}

// Info returns the stamped build metadata for the api binary
func Info() BuildInfo { return For("laneledger-api") }

// For returns build metadata under the given service name; the commit falls
// back to the vcs revision the toolchain embedded when ldflags left it unset
func For(service string) BuildInfo {
	b := BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	b.GoVersion = bi.GoVersion
	if b.Commit == "none" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				b.Commit = s.Value
				if len(b.Commit) > 12 {
					b.Commit = b.Commit[:12]
				}
			}
		}
	}
	return b
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", b.Service, b.Version, b.Commit, b.Date)
}
