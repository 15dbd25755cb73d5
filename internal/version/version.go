// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

// Package version provides build-time version information and the
// project metadata of pint_pal.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// These variables are set at build time using ldflags.
var (
	// Version is the semantic version (e.g., "0.1.0", "0.1.0-alpha.1").
	Version = "dev"
	// Commit is the git commit SHA.
	Commit = "none"
	// Date is the build date in RFC3339 format.
	Date = "unknown"
)

func init() {
	resolve(debug.ReadBuildInfo)
}

// resolve fills the version variables that were not set via ldflags from
// the module build info. The module version comes from the VCS tag when
// installed via "go install module@version".
func resolve(readBuildInfo func() (*debug.BuildInfo, bool)) {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = strings.TrimPrefix(info.Main.Version, "v")
	}

	if Commit == "none" || Date == "unknown" {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if Commit == "none" && len(setting.Value) >= 7 {
					Commit = setting.Value[:7]
				}
			case "vcs.time":
				if Date == "unknown" {
					Date = setting.Value
				}
			}
		}
	}
}

// Info returns formatted version information.
func Info() string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s, go: %s)",
		Command, Version, Commit, Date, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	return Version
}
