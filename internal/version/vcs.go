// Copyright 2022 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package version

import (
	"runtime/debug"
	"time"
)

const (
	govcsTimeLayout = "2006-01-02T15:04:05Z"
	ourTimeLayout   = "20060102"
)

// Overridden by the linker, e.g. -ldflags "-X .../internal/version.gitCommit=...".
// 可由链接器覆盖。
var gitCommit, gitDate string

// VCSInfo is the git state the binary was built from.
type VCSInfo struct {
	Commit string // Head commit hash
	Date   string // Commit date, YYYYMMDD
	Dirty  bool   // Whether the tree had uncommitted changes
}

// VCS returns the version control information embedded into the running
// executable. Values injected by the linker take precedence over the ones
// recorded by the go tool.
func VCS() (VCSInfo, bool) {
	if gitCommit != "" {
		return VCSInfo{Commit: gitCommit, Date: gitDate}, true
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path != ourPath {
		return VCSInfo{}, false
	}
	return buildInfoVCS(info.Settings)
}

// buildInfoVCS extracts the vcs.* settings recorded by the go tool. Both the
// revision and the commit time must be present.
func buildInfoVCS(settings []debug.BuildSetting) (VCSInfo, bool) {
	var vcs VCSInfo
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			vcs.Commit = s.Value
		case "vcs.modified":
			vcs.Dirty = s.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(govcsTimeLayout, s.Value); err == nil {
				vcs.Date = t.Format(ourTimeLayout)
			}
		}
	}
	return vcs, vcs.Commit != "" && vcs.Date != ""
}
