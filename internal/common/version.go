package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// PrintBanner displays the application banner
func PrintBanner(version string) {
	banner.PrintSimple("Colloquy", version)
}
