// Package version carries build metadata stamped in by the release build.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time, e.g.
// -ldflags "-X github.com/example/stackup/internal/version.Version=v0.3.0".
var (
	Version      = "dev"
	GitCommit    = "unknown"
	GitTreeState = "unknown" // clean|dirty|unknown
	BuildDate    = "unknown" // RFC3339 UTC
)

type Info struct {
	Version      string `json:"version"`
	GitCommit    string `json:"gitCommit,omitempty"`
	GitTreeState string `json:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate,omitempty"`
	GoVersion    string `json:"goVersion"`
	Platform     string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:      Version,
		GitCommit:    known(GitCommit),
		GitTreeState: known(GitTreeState),
		BuildDate:    known(BuildDate),
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line banner printed by `stackup version`.
func (i Info) String() string {
	s := "stackup " + i.Version
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s", i.GitCommit)
		if i.GitTreeState == "dirty" {
			s += ", dirty"
		}
		s += ")"
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return s + fmt.Sprintf(" %s %s", i.GoVersion, i.Platform)
}

func known(v string) string {
	if v == "unknown" {
		return ""
	}
	return v
}
