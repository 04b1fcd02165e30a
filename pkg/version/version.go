// Package version exposes build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time, for example:
//
//	go build -ldflags "-X github.com/goclaw/willing/pkg/version.Version=v1.2.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Info returns the build metadata as a map, as served on /status.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": GoVersion,
	}
}

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("willingd %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}
