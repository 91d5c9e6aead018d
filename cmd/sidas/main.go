package main

import (
	_ "time/tzdata"

	"sidas/internal/cli"
	_ "sidas/internal/compute/kinds"
)

// These variables are populated by the build via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
