package trackgw

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/openfleet/trackgw/src.Version=X'"`
var Version string

func buildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return defaultValue
}

// VersionString renders the banner printed at startup and by the
// --version flag. Revision and build time come from the VCS stamp the
// Go toolchain embeds.
func VersionString() string {
	buildInfo, _ := debug.ReadBuildInfo()

	buildTime := buildSettingOrDefault(buildInfo, "vcs.time", "UNKNOWN")
	buildCommit := buildSettingOrDefault(buildInfo, "vcs.revision", "UNKNOWN")
	buildDirtyStr := buildSettingOrDefault(buildInfo, "vcs.modified", "INVALID")

	buildDirty, err := strconv.ParseBool(buildDirtyStr)
	if buildDirty {
		buildCommit += "-DIRTY"
	} else if err != nil {
		buildCommit += "-UNKNOWNDIRTY"
	}

	version := Version
	if version == "" {
		version = "!UNKNOWN!"
	}

	return fmt.Sprintf("trackgw - Version %s (revision %s, built at %s)", version, buildCommit, buildTime)
}
