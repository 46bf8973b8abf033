package web

import (
	"fmt"
	"sync"
)

// BuildInfo identifies the running binary in /api/status
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", b.Version, b.Commit, b.BuildTime)
}

var (
	buildMu   sync.RWMutex
	buildInfo = BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
)

// SetBuildInfo is called once from main with the values set by the linker.
// Empty fields keep their defaults.
func SetBuildInfo(info BuildInfo) {
	buildMu.Lock()
	defer buildMu.Unlock()
	if info.Version != "" {
		buildInfo.Version = info.Version
	}
	if info.Commit != "" {
		buildInfo.Commit = info.Commit
	}
	if info.BuildTime != "" {
		buildInfo.BuildTime = info.BuildTime
	}
}

// CurrentBuildInfo returns the build info reported by the API
func CurrentBuildInfo() BuildInfo {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return buildInfo
}
