package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags.
var Commit = "unknown"

// Date is set at build time via -ldflags.
var Date = "unknown"

// Info describes the running binary.
type Info struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

// Read returns the linker-provided values, falling back to the VCS stamp
// the go tool embeds when -ldflags were not used.
func Read() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && len(s.Value) >= 12 {
				info.Commit = s.Value[:12]
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}
	return info
}

// Short returns a compact build identifier for logs and trace sessions.
func (i Info) Short() string {
	if i.Version != "" && i.Version != "dev" {
		return i.Version
	}
	if i.Commit != "" && i.Commit != "unknown" {
		return i.Commit
	}
	return "dev"
}

func (i Info) String() string {
	return fmt.Sprintf("strand %s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.Go)
}
