// Package daemon runs the RAIN web console as a background user service
// (launchd on macOS, systemd on Linux) and guards against two consoles
// sharing one config directory.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	label    = "dev.rain.console"
	unitName = "rain.service"
)

// Manager defines platform-specific service management operations.
type Manager interface {
	Install(args []string) error
	Uninstall() error
	Start() error
	Stop() error
	Restart() error
	Status() (*Status, error)
}

// Status describes the current state of the background service.
type Status struct {
	Installed bool
	Running   bool
	PID       int
	LogPath   string
}

// LogPath returns the service log file path.
func LogPath() string {
	return filepath.Join(configDir(), "serve.log")
}

// ExecPath returns the resolved absolute path of the running binary.
func ExecPath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate binary: %w", err)
	}
	p, err = filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("cannot resolve binary path: %w", err)
	}
	return p, nil
}

// serviceArgs is the command line the service manager runs.
func serviceArgs(extra []string) []string {
	return append([]string{"serve"}, extra...)
}
