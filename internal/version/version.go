// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/docweave/internal/version.Version=v0.3.0".
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. When Version was not
// injected, the module version recorded by the Go toolchain is used.
func String() string {
	v := Version
	if v == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("docweave %s (commit %s, built %s)", v, GitCommit, BuildTime)
}
