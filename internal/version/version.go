// Package version reports the ethosgate build version.
package version

import (
	"runtime/debug"
)

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

const shortRevision = 12

// BuildVersion returns the module version. Development builds report "dev",
// or "dev-<revision>" when the VCS revision was stamped into the binary.
func BuildVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	if rev := setting(info, "vcs.revision"); rev != "" {
		if len(rev) > shortRevision {
			rev = rev[:shortRevision]
		}
		if setting(info, "vcs.modified") == "true" {
			rev += "-dirty"
		}
		return "dev-" + rev
	}
	return "dev"
}

// GoVersion the binary was built with, or "unknown"
func GoVersion() string {
	info, ok := readBuildInfo()
	if !ok || info.GoVersion == "" {
		return "unknown"
	}
	return info.GoVersion
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
