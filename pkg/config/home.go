package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides where onboard-runner keeps its reports.
const HomeEnv = "ONBOARD_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory run reports are kept under. It is resolved
// once per process: $ONBOARD_RUNNER_HOME, then the install root of a binary
// living in <root>/bin, then the working directory.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = lookupHome()
	})
	return homeDir
}

// GetReportsDir returns <home>/reports. Each run writes to a timestamped subdirectory.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func lookupHome() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		if root, ok := installRoot(exe); ok {
			return root
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// installRoot reports the parent of the bin directory holding exe, following symlinks.
func installRoot(exe string) (string, bool) {
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) != "bin" {
		return "", false
	}
	return filepath.Dir(dir), true
}

// ResetHome forgets the resolved home so the next GetHome looks it up again.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
