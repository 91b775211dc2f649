// Package version reports the build version of the essp binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/essp/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/essp/internal/version.Commit=abc1234"
//
// Unset values are filled from the embedded VCS stamp, then fall back to
// "dev".
var (
	Version = ""
	Commit  = ""
)

// HostProtocolVersion is the highest SSP protocol version the host speaks.
const HostProtocolVersion = 8

// Info describes the running build.
type Info struct {
	Version   string
	Commit    string
	BuildTime string // VCS commit time, empty when unknown
	GoVersion string
	Platform  string
	Protocol  int
}

var (
	resolveOnce sync.Once
	resolved    Info
)

// Get returns the build information, resolving it on first use.
func Get() Info {
	resolveOnce.Do(func() {
		resolved = resolve(Version, Commit, readSettings())
	})
	return resolved
}

func readSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// resolve merges ldflags values with the VCS build settings.
func resolve(version, commit string, vcs map[string]string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Protocol:  HostProtocolVersion,
	}

	if rev := vcs["vcs.revision"]; info.Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if vcs["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		info.Commit = rev
	}

	if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
		if info.Version == "" {
			info.Version = "dev-" + t.Format("20060102")
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// Full returns the version string including commit.
func Full() string {
	i := Get()
	return fmt.Sprintf("%s (commit: %s)", i.Version, i.Commit)
}

// String renders every field on its own line.
func (i Info) String() string {
	s := fmt.Sprintf("essp %s\n  commit:   %s\n", i.Version, i.Commit)
	if i.BuildTime != "" {
		s += fmt.Sprintf("  built:    %s\n", i.BuildTime)
	}
	return s + fmt.Sprintf("  go:       %s %s\n  protocol: SSP v%d\n", i.GoVersion, i.Platform, i.Protocol)
}
