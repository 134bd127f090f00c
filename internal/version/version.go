// Package version holds build metadata set through -ldflags.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = ""                              // ex: abcd123, falls back to the vcs stamp
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns the build info. Values missing from -ldflags are read from
// the vcs settings the go tool embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return fillDefaults(info)
	}
	return fillDefaults(fromSettings(info, bi.Settings))
}

func fromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func fillDefaults(info Info) Info {
	if info.Commit == "" {
		info.Commit = "none"
	}
	return info
}
