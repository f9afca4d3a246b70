package main

import (
	"os"

	"github.com/ironsheep/tesseract-mcp/cmd/tess-mcp/cmd"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime, GitCommit)

	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
