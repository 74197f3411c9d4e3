// Package main is the single-binary entrypoint for Nexus Pulse.
package main

import "github.com/nexus-quest/pulse/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
