// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withVars(t *testing.T, v, c, d string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, Date
	Version, Commit, Date = v, c, d
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		info       *debug.BuildInfo
		ok         bool
		preset     [3]string
		wantVer    string
		wantCommit string
		wantDate   string
	}{
		{
			name:       "no build info",
			ok:         false,
			preset:     [3]string{"dev", "none", "unknown"},
			wantVer:    "dev",
			wantCommit: "none",
			wantDate:   "unknown",
		},
		{
			name: "tagged module with vcs settings",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.4.2"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
				},
			},
			ok:         true,
			preset:     [3]string{"dev", "none", "unknown"},
			wantVer:    "1.4.2",
			wantCommit: "0123456",
			wantDate:   "2026-01-02T03:04:05Z",
		},
		{
			name:       "devel build keeps dev",
			info:       &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			ok:         true,
			preset:     [3]string{"dev", "none", "unknown"},
			wantVer:    "dev",
			wantCommit: "none",
			wantDate:   "unknown",
		},
		{
			name: "ldflags win over build info",
			info: &debug.BuildInfo{
				Main:     debug.Module{Version: "v9.9.9"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffff"}},
			},
			ok:         true,
			preset:     [3]string{"2.0.0", "abcdef0", "2025-12-31"},
			wantVer:    "2.0.0",
			wantCommit: "abcdef0",
			wantDate:   "2025-12-31",
		},
		{
			name: "short revision ignored",
			info: &debug.BuildInfo{
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}},
			},
			ok:         true,
			preset:     [3]string{"dev", "none", "unknown"},
			wantVer:    "dev",
			wantCommit: "none",
			wantDate:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVars(t, tt.preset[0], tt.preset[1], tt.preset[2])
			resolve(func() (*debug.BuildInfo, bool) { return tt.info, tt.ok })
			assert.Equal(t, tt.wantVer, Version)
			assert.Equal(t, tt.wantCommit, Commit)
			assert.Equal(t, tt.wantDate, Date)
		})
	}
}

func TestInfo(t *testing.T) {
	withVars(t, "1.0.0", "abc1234", "2026-01-01")
	info := Info()
	assert.Contains(t, info, "pintpal version 1.0.0")
	assert.Contains(t, info, "commit: abc1234")
	assert.Equal(t, "1.0.0", Short())
}

func TestMetadata(t *testing.T) {
	withVars(t, "1.0.0", "abc1234", "2026-01-01")
	md := Metadata()
	assert.Equal(t, "pint_pal", md.Name)
	assert.Equal(t, "1.0.0", md.Version)
	assert.NotEmpty(t, md.Authors)
	assert.Equal(t, MinGoVersion, md.MinGoVersion)

	// Mutating the returned authors must not leak into the package state.
	md.Authors[0] = "someone else"
	assert.NotEqual(t, "someone else", Authors[0])
}
