package trackgw

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the package-wide structured logger. cmd/trackgw adjusts
// the level from configuration before the servers start.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "trackgw",
})

// SetLogLevel applies a configured level name, ignoring unknown
// values so a typo in the config does not silence the gateway.
func SetLogLevel(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		Logger.Warn("unknown log level, keeping default", "level", level)
		return
	}
	Logger.SetLevel(parsed)
}
