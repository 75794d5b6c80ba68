package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/cellpad"

// buildVersion is set via -ldflags "-X pkt.systems/cellpad/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// Current returns the best available version string (without dirty suffix).
func Current() string {
	return Read().Version
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

// UserAgent returns the product token sent to Jupyter servers.
func UserAgent() string {
	return "cellpad/" + Current()
}

// Read collects version details from the linker flag and build info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if ts, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = ts.UTC()
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(override) != "":
		out.Version = strings.TrimSuffix(strings.TrimSpace(override), "+dirty")
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSuffix(info.Main.Version, "+dirty")
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = out.pseudo()
	}
	return out
}

// pseudo builds a Go-style pseudo version from the VCS stamp.
func (i Info) pseudo() string {
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + i.Time.Format("20060102150405") + "-" + rev
}

// String includes the dirty marker when the working tree was modified.
func (i Info) String() string {
	if i.Dirty {
		return i.Module + " " + i.Version + "+dirty"
	}
	return i.Module + " " + i.Version
}
