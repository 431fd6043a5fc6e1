package version

import (
	"fmt"
	"runtime"
	"time"
)

// Overridden at build time with -ldflags "-X github.com/MrSnakeDoc/marksync/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().UTC().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// String renders the build metadata on one line for startup logs.
func String() string {
	return fmt.Sprintf("marksync %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
